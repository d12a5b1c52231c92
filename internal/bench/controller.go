// Package bench drives the shop bench power rails, USB service ports
// and Local/Remote selects through the relay expander banks, mirroring
// every semantic state change to the action log and the MQTT bus.
package bench

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/hardware"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/monitoring"
	"github.com/pengels22/Shop-Controller/internal/logstore"
	"github.com/pengels22/Shop-Controller/internal/mqttbus"
)

// Sequencing delays for the USB service macro.
const (
	usbDataToVBusDelay = 100 * time.Millisecond
	usbVBusToDataDelay = 100 * time.Millisecond
	serviceSettleDelay = 3 * time.Second
)

// Controller owns all semantic channel state. Semantics:
//   - rails, VBUS, !OE gates: true means enabled
//   - lr1/lr2: true means REMOTE (pin LOW), false means LOCAL (pin HIGH)
type Controller struct {
	channels map[string]Channel
	pins     map[string]hardware.Pin

	store   *logstore.Store
	bus     *mqttbus.Publisher
	metrics *monitoring.Metrics
	logger  *logging.Logger

	mu    sync.Mutex
	state map[string]bool

	// sleep is swappable so tests skip the real sequencing delays.
	sleep func(time.Duration)

	missingWarned map[string]bool
}

// New builds a controller over the given banks. Channels without a
// resolvable pin stay virtual: state is tracked but nothing is driven.
func New(
	banks map[string]hardware.Bank,
	channels map[string]Channel,
	store *logstore.Store,
	bus *mqttbus.Publisher,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}

	pins := make(map[string]hardware.Pin, len(channels))
	for name, ch := range channels {
		bank, ok := banks[ch.Bank]
		if !ok {
			continue
		}
		pin, err := bank.Pin(ch.Pin)
		if err != nil {
			logger.Warn("channel pin init failed",
				zap.String("channel", name),
				zap.Error(err),
			)
			continue
		}
		pins[name] = pin
	}

	state := make(map[string]bool, len(channels))
	for name := range channels {
		state[name] = false
	}

	return &Controller{
		channels:      channels,
		pins:          pins,
		store:         store,
		bus:           bus,
		metrics:       metrics,
		logger:        logger,
		state:         state,
		sleep:         time.Sleep,
		missingWarned: make(map[string]bool),
	}
}

// Known reports whether a channel name exists in the map.
func (c *Controller) Known(channel string) bool {
	_, ok := c.channels[channel]
	return ok
}

// Get returns the current semantic state. Unknown channels read false.
func (c *Controller) Get(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[channel]
}

// Snapshot returns a copy of the full semantic state map.
func (c *Controller) Snapshot() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}

// computePinLevel maps semantic on/off to the electrical level for a
// channel, honoring the per-channel polarity overrides. Plain relay
// channels are active-low.
func computePinLevel(channel string, on bool) bool {
	if activeHighChannels[channel] {
		return on
	}
	if activeLowChannels[channel] {
		return !on
	}
	return !on
}

func (c *Controller) setPinLevel(channel string, level bool) {
	pin, ok := c.pins[channel]
	if !ok {
		c.mu.Lock()
		warned := c.missingWarned[channel]
		c.missingWarned[channel] = true
		c.mu.Unlock()
		if !warned {
			c.logger.Warn("channel has no hardware pin; state is virtual",
				zap.String("channel", channel))
		}
		return
	}
	if err := pin.Set(level); err != nil {
		c.logger.Warn("pin write failed",
			zap.String("channel", channel),
			zap.Bool("level", level),
			zap.Error(err),
		)
	}
}

// SetChannel drives one semantic channel, updates state, publishes to
// the bus and logs rail and USB transitions.
func (c *Controller) SetChannel(channel string, on bool) error {
	if !c.Known(channel) {
		return fmt.Errorf("unknown channel %q", channel)
	}

	prev := c.Get(channel)

	c.setPinLevel(channel, computePinLevel(channel, on))

	c.mu.Lock()
	c.state[channel] = on
	onCount := 0
	for _, v := range c.state {
		if v {
			onCount++
		}
	}
	c.mu.Unlock()

	c.publish(channel, on)
	if c.metrics != nil {
		c.metrics.RecordChannelSwitch(channel, on)
		c.metrics.ChannelsOn.Set(float64(onCount))
	}

	if prev != on {
		c.logTransition(channel, on, prev)
	}
	return nil
}

func (c *Controller) publish(channel string, on bool) {
	if c.bus == nil {
		return
	}
	c.bus.PublishState(channel, on)
	if c.metrics != nil && c.bus.Enabled() {
		c.metrics.BusPublishes.Inc()
	}
}

func (c *Controller) logTransition(channel string, on, prev bool) {
	if c.store == nil {
		return
	}
	switch {
	case isRailChannel(channel):
		// bench1_hv -> bench=bench1 rail=hv
		bench, rail := splitRail(channel)
		c.store.Append("rail_change", map[string]interface{}{
			"channel": channel,
			"bench":   bench,
			"rail":    rail,
			"state":   on,
			"prev":    prev,
		})
	case isUSBChannel(channel):
		c.store.Append("usb_channel_change", map[string]interface{}{
			"channel": channel,
			"state":   on,
			"prev":    prev,
		})
	default:
		return
	}
	if c.metrics != nil {
		c.metrics.ActionsLogged.Inc()
	}
}

func splitRail(channel string) (bench, rail string) {
	for i := 0; i < len(channel); i++ {
		if channel[i] == '_' {
			return channel[:i], channel[i+1:]
		}
	}
	return channel, ""
}

func isUSBChannel(channel string) bool {
	if len(channel) < 5 || channel[:4] != "port" {
		return false
	}
	return activeHighChannels[channel] || activeLowChannels[channel]
}

// SetLR drives a Local/Remote select. remote=true drives the pin LOW.
func (c *Controller) SetLR(port int, remote bool) error {
	if port != 1 && port != 2 {
		return fmt.Errorf("LR port must be 1 or 2, got %d", port)
	}
	ch := "lr1"
	if port == 2 {
		ch = "lr2"
	}

	c.setPinLevel(ch, !remote)

	c.mu.Lock()
	c.state[ch] = remote
	c.mu.Unlock()

	c.publish(ch, remote)
	if c.metrics != nil {
		c.metrics.RecordChannelSwitch(ch, remote)
	}
	return nil
}

// KillPower turns every rail of a bench off.
func (c *Controller) KillPower(bench string) error {
	rails, ok := Benches[bench]
	if !ok {
		return fmt.Errorf("unknown bench %q", bench)
	}
	for _, ch := range rails {
		if err := c.SetChannel(ch, false); err != nil {
			return err
		}
	}
	return nil
}

// EnablePower turns every rail of a bench on.
func (c *Controller) EnablePower(bench string) error {
	rails, ok := Benches[bench]
	if !ok {
		return fmt.Errorf("unknown bench %q", bench)
	}
	for _, ch := range rails {
		if err := c.SetChannel(ch, true); err != nil {
			return err
		}
	}
	return nil
}

// AllOff kills every bench rail and fully disables every USB port.
func (c *Controller) AllOff() error {
	for bench := range Benches {
		if err := c.KillPower(bench); err != nil {
			return err
		}
	}
	for port := 1; port <= 4; port++ {
		if err := c.USBPortEnable(port, false, false); err != nil {
			return err
		}
	}
	return nil
}

// ApplyBootDefaults puts all hardware into the safe boot posture:
// everything off, LR selects local, USB data gated, VBUS dead, then
// every bench rail explicitly killed.
func (c *Controller) ApplyBootDefaults() {
	for ch := range c.channels {
		if ch == "lr1" || ch == "lr2" {
			// HIGH = local
			c.setPinLevel(ch, true)
			c.mu.Lock()
			c.state[ch] = false
			c.mu.Unlock()
			continue
		}
		c.setPinLevel(ch, computePinLevel(ch, false))
		c.mu.Lock()
		c.state[ch] = false
		c.mu.Unlock()
	}

	// !OE HIGH = data disabled
	for _, ch := range []string{"port3_en", "port4_en"} {
		c.setPinLevel(ch, true)
	}
	// VBUS enables LOW = dead
	for _, ch := range []string{"port1_vcc_en", "port2_vcc_en", "port3_vcc_en", "port4_vcc_en"} {
		c.setPinLevel(ch, false)
	}

	for bench := range Benches {
		_ = c.KillPower(bench)
	}

	c.logger.Info("boot defaults applied", zap.Int("channels", len(c.channels)))
}
