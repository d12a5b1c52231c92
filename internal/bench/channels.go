package bench

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Bank keys and their I2C addresses.
const (
	BankMCP1 = "mcp1" // 0x20: HV rails, LR selects, indicators
	BankMCP2 = "mcp2" // 0x21: 5V/12V rails, USB gates, VBUS enables
)

// BankAddrs maps bank key to I2C address.
var BankAddrs = map[string]uint8{
	BankMCP1: 0x20,
	BankMCP2: 0x21,
}

// Channel locates one semantic output on an expander.
type Channel struct {
	Bank string `yaml:"bank"`
	Pin  int    `yaml:"pin"`
}

// DefaultChannels is the wiring truth: semantic name to bank and pin.
func DefaultChannels() map[string]Channel {
	return map[string]Channel{
		// mcp2: 5V rails (GPA0..3)
		"bench1_5v": {BankMCP2, 0},
		"bench2_5v": {BankMCP2, 1},
		"bench3_5v": {BankMCP2, 2},
		"bench4_5v": {BankMCP2, 3},

		// mcp2: 12V rails (GPA4..7)
		"bench1_12v": {BankMCP2, 4},
		"bench2_12v": {BankMCP2, 5},
		"bench3_12v": {BankMCP2, 6},
		"bench4_12v": {BankMCP2, 7},

		// mcp2: USB port 3/4 data gates, !OE so active-low (GPB0..1)
		"port4_en": {BankMCP2, 8},
		"port3_en": {BankMCP2, 9},

		"spare_1": {BankMCP2, 10},
		"spare_2": {BankMCP2, 11},

		// mcp2: VBUS enables, active-high (GPB4..7)
		"port3_vcc_en": {BankMCP2, 12},
		"port4_vcc_en": {BankMCP2, 13},
		"port2_vcc_en": {BankMCP2, 14},
		"port1_vcc_en": {BankMCP2, 15},

		// mcp1: HV rails (GPA0..3)
		"bench1_hv": {BankMCP1, 0},
		"bench2_hv": {BankMCP1, 1},
		"bench3_hv": {BankMCP1, 2},
		"bench4_hv": {BankMCP1, 3},

		"air_compressor": {BankMCP1, 4},
		"lights":         {BankMCP1, 5},

		// mcp1: Local/Remote selects, HIGH=Local LOW=Remote (GPA6..7)
		"lr1": {BankMCP1, 6},
		"lr2": {BankMCP1, 7},

		// mcp1: indicators and extras (GPB0..7)
		"stat_1":  {BankMCP1, 8},
		"stat_2":  {BankMCP1, 9},
		"stack_r": {BankMCP1, 10},
		"stack_a": {BankMCP1, 11},
		"stack_g": {BankMCP1, 12},
		"ring_1":  {BankMCP1, 13},
		"ring_2":  {BankMCP1, 14},
		"spare_3": {BankMCP1, 15},
	}
}

// LoadChannels returns the channel map, applying the YAML override file
// if path is non-empty. Overrides replace or add individual channels;
// unnamed channels keep their defaults.
func LoadChannels(path string) (map[string]Channel, error) {
	channels := DefaultChannels()
	if path == "" {
		return channels, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var override map[string]Channel
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse channels file: %w", err)
	}

	for name, ch := range override {
		if _, ok := BankAddrs[ch.Bank]; !ok {
			return nil, fmt.Errorf("channel %q: unknown bank %q", name, ch.Bank)
		}
		if ch.Pin < 0 || ch.Pin > 15 {
			return nil, fmt.Errorf("channel %q: pin out of range: %d", name, ch.Pin)
		}
		channels[name] = ch
	}
	return channels, nil
}

// Polarity overrides. Everything else is a relay channel, and the relay
// boards are active-low: pin LOW energizes the relay.
var (
	activeHighChannels = map[string]bool{
		"port1_vcc_en": true,
		"port2_vcc_en": true,
		"port3_vcc_en": true,
		"port4_vcc_en": true,
	}
	// ON means !OE LOW.
	activeLowChannels = map[string]bool{
		"port3_en": true,
		"port4_en": true,
	}
)

// Benches maps bench name to its power rails, kill order first.
var Benches = map[string][]string{
	"bench1": {"bench1_hv", "bench1_12v", "bench1_5v"},
	"bench2": {"bench2_hv", "bench2_12v", "bench2_5v"},
	"bench3": {"bench3_hv", "bench3_12v", "bench3_5v"},
	"bench4": {"bench4_hv", "bench4_12v", "bench4_5v"},
}

// BenchToUSBPort maps bench name to its service USB port.
var BenchToUSBPort = map[string]int{
	"bench1": 1,
	"bench2": 2,
	"bench3": 3,
	"bench4": 4,
}

func isRailChannel(name string) bool {
	for _, rails := range Benches {
		for _, r := range rails {
			if r == name {
				return true
			}
		}
	}
	return false
}
