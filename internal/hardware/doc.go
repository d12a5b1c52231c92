// Package hardware abstracts the relay I/O expanders behind Pin/Bank
// interfaces so the controller runs identically against real MCP23017
// chips or the in-memory virtual bank used when the I2C bus is absent.
//
// A real driver implements Bank on top of an I2C transport; everything
// above this package only ever sees semantic pin writes.
package hardware
