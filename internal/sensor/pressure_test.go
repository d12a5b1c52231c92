package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
)

func newBypassReader() *Pressure {
	cfg := config.PressureConfig{
		MaxPSI:      200,
		WiringMode:  "bypass",
		SmoothAlpha: 0.25,
		PollHz:      10,
	}
	return New(VirtualADC{}, cfg, logging.NewNop())
}

func TestVoltageToPSIEndpoints(t *testing.T) {
	p := newBypassReader()

	assert.InDelta(t, 0.0, p.voltageToPSI(0.5), 1e-9)
	assert.InDelta(t, 200.0, p.voltageToPSI(4.5), 1e-9)
	assert.InDelta(t, 100.0, p.voltageToPSI(2.5), 1e-9)
}

func TestVoltageToPSIClamps(t *testing.T) {
	p := newBypassReader()

	assert.Equal(t, 0.0, p.voltageToPSI(0.0), "below span clamps to zero")
	assert.Equal(t, 200.0, p.voltageToPSI(5.0), "above span clamps to max")
}

func TestDividerModeScalesReading(t *testing.T) {
	cfg := config.PressureConfig{
		MaxPSI:      200,
		WiringMode:  "divider",
		SmoothAlpha: 0.25,
		PollHz:      10,
	}
	p := New(VirtualADC{}, cfg, logging.NewNop())

	// The divider presents one third of the sensor voltage to the ADC,
	// so a mid-span sensor output of 2.5V reads 100 PSI.
	assert.InDelta(t, 100.0, p.voltageToPSI(2.5*dividerRatio), 1e-9)
}

func TestSmoothingSeedsThenBlends(t *testing.T) {
	p := newBypassReader()

	// First observation seeds directly.
	p.observe(2.5)
	assert.InDelta(t, 100.0, p.Current(), 1e-9)

	// Second observation blends: 0.25*200 + 0.75*100.
	p.observe(4.5)
	assert.InDelta(t, 125.0, p.Current(), 1e-9)
}

func TestVirtualADCReadsZero(t *testing.T) {
	p := newBypassReader()
	p.sample()

	assert.False(t, p.Available())
	assert.Equal(t, 0.0, p.Current())
}
