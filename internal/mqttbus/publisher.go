// Package mqttbus publishes semantic channel state to an MQTT broker as
// retained ON/OFF messages on <base>/state/<channel>.
//
// Publishing is strictly best-effort: a disabled or disconnected
// publisher is a no-op, and publish failures never reach callers.
package mqttbus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
)

const connectTimeout = 5 * time.Second

// Publisher mirrors channel state onto the shop MQTT bus.
type Publisher struct {
	client mqtt.Client
	base   string
	logger *logging.Logger
}

// New connects to the broker described by cfg. A disabled config returns
// a nil-safe no-op publisher; a failed connect does too, with a warning,
// so the controller keeps running without the bus.
func New(cfg config.MQTTConfig, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if !cfg.Enabled {
		return &Publisher{base: cfg.Base, logger: logger}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		// Unique suffix so a restarted controller never collides with a
		// stale broker session under the same client id.
		SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second)

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) || tok.Error() != nil {
		logger.Warn("mqtt connect failed; state publishing disabled",
			zap.String("broker", cfg.Broker),
			zap.Error(tok.Error()),
		)
		return &Publisher{base: cfg.Base, logger: logger}
	}

	logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	return &Publisher{client: client, base: cfg.Base, logger: logger}
}

// Enabled reports whether a broker connection is live.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil && p.client.IsConnected()
}

// PublishState publishes one channel's retained ON/OFF state.
func (p *Publisher) PublishState(channel string, on bool) {
	if !p.Enabled() {
		return
	}
	payload := "OFF"
	if on {
		payload = "ON"
	}
	topic := fmt.Sprintf("%s/state/%s", p.base, channel)
	tok := p.client.Publish(topic, 0, true, payload)
	go func() {
		if tok.Wait() && tok.Error() != nil {
			p.logger.Debug("mqtt publish failed",
				zap.String("topic", topic),
				zap.Error(tok.Error()),
			)
		}
	}()
}

// PublishAll republishes a full state snapshot, e.g. after connect.
func (p *Publisher) PublishAll(state map[string]bool) {
	for ch, on := range state {
		p.PublishState(ch, on)
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p != nil && p.client != nil {
		p.client.Disconnect(250)
	}
}
