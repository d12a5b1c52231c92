// Package sensor reads the shop air-pressure transducer through an ADC
// and serves a smoothed PSI value to the REST API.
package sensor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
)

// ADC is one analog input channel.
type ADC interface {
	// Voltage returns the current reading in volts.
	Voltage() (float64, error)
	// Available reports whether the physical converter answered at init.
	Available() bool
}

// VirtualADC is the no-hardware fallback. It always reads zero volts.
type VirtualADC struct{}

func (VirtualADC) Voltage() (float64, error) { return 0, nil }
func (VirtualADC) Available() bool           { return false }

// Transducer output spans 0.5V..4.5V at the sensor. Through the 20k/10k
// divider the ADC sees a third of that; in bypass mode it sees it raw.
const (
	sensorVMin = 0.5
	sensorVMax = 4.5

	dividerRatio = 10000.0 / (20000.0 + 10000.0)
)

// Pressure polls the ADC, converts volts to PSI and keeps an
// exponentially smoothed value.
type Pressure struct {
	adc    ADC
	cfg    config.PressureConfig
	ratio  float64
	logger *logging.Logger

	mu     sync.Mutex
	psi    float64
	seeded bool

	stop chan struct{}
	done chan struct{}
}

// New creates a pressure reader over the given ADC. Call Start to begin
// polling.
func New(adc ADC, cfg config.PressureConfig, logger *logging.Logger) *Pressure {
	if logger == nil {
		logger = logging.NewNop()
	}
	ratio := 1.0
	if cfg.WiringMode == "divider" {
		ratio = dividerRatio
	}
	return &Pressure{
		adc:    adc,
		cfg:    cfg,
		ratio:  ratio,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Available reports whether a physical ADC is attached.
func (p *Pressure) Available() bool { return p.adc.Available() }

// WiringMode reports the configured wiring mode ("divider" or "bypass").
func (p *Pressure) WiringMode() string { return p.cfg.WiringMode }

// MaxPSI reports the sensor's full-scale pressure.
func (p *Pressure) MaxPSI() float64 { return p.cfg.MaxPSI }

// Current returns the latest smoothed pressure in PSI.
func (p *Pressure) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.psi
}

// Start launches the polling loop at the configured rate.
func (p *Pressure) Start() {
	hz := p.cfg.PollHz
	if hz <= 0 {
		hz = 10
	}
	interval := time.Duration(float64(time.Second) / hz)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.sample()
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to exit.
func (p *Pressure) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Pressure) sample() {
	v, err := p.adc.Voltage()
	if err != nil {
		p.logger.Debug("pressure read failed", zap.Error(err))
		return
	}
	p.observe(v)
}

// observe folds one ADC reading into the smoothed value.
func (p *Pressure) observe(adcVolts float64) {
	psi := p.voltageToPSI(adcVolts)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seeded {
		p.psi = psi
		p.seeded = true
		return
	}
	a := p.cfg.SmoothAlpha
	p.psi = a*psi + (1-a)*p.psi
}

// voltageToPSI maps the ADC reading back to sensor volts, then linearly
// to 0..MaxPSI over the 0.5V..4.5V span, clamped at both ends.
func (p *Pressure) voltageToPSI(adcVolts float64) float64 {
	sensorVolts := adcVolts / p.ratio
	frac := (sensorVolts - sensorVMin) / (sensorVMax - sensorVMin)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac * p.cfg.MaxPSI
}
