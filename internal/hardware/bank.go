package hardware

import (
	"fmt"
	"sync"
)

// Pin is a single digital output line.
type Pin interface {
	// Set drives the pin to the given electrical level (true = HIGH).
	Set(level bool) error
	// Level reports the last level driven.
	Level() bool
}

// Bank is one 16-bit I/O expander (MCP23017-class device).
type Bank interface {
	// Pin returns the output pin at index 0..15.
	Pin(index int) (Pin, error)
	// Available reports whether the physical device answered at init.
	Available() bool
	// Addr returns the device's I2C address.
	Addr() uint8
}

// VirtualBank is the no-hardware fallback: it accepts every write and
// remembers levels in memory so the controller keeps running (and stays
// testable) when the I2C bus or expanders are missing.
type VirtualBank struct {
	addr   uint8
	mu     sync.Mutex
	levels [16]bool
}

// NewVirtualBank creates a virtual expander at the given I2C address.
func NewVirtualBank(addr uint8) *VirtualBank {
	return &VirtualBank{addr: addr}
}

func (b *VirtualBank) Pin(index int) (Pin, error) {
	if index < 0 || index > 15 {
		return nil, fmt.Errorf("pin index out of range: %d", index)
	}
	return &virtualPin{bank: b, index: index}, nil
}

func (b *VirtualBank) Available() bool { return false }

func (b *VirtualBank) Addr() uint8 { return b.addr }

// PinLevel reports the level last driven on a pin. Test helper.
func (b *VirtualBank) PinLevel(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[index]
}

type virtualPin struct {
	bank  *VirtualBank
	index int
}

func (p *virtualPin) Set(level bool) error {
	p.bank.mu.Lock()
	defer p.bank.mu.Unlock()
	p.bank.levels[p.index] = level
	return nil
}

func (p *virtualPin) Level() bool {
	return p.bank.PinLevel(p.index)
}
