// Package logging provides structured logging built on zap.
//
// Production uses the JSON encoder; development uses a colored console
// encoder with stacktraces enabled.
package logging
