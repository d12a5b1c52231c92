// Package terminal provides interactive PTY shell sessions for remote
// clients. Each connection gets its own shell on a dedicated
// pseudo-terminal; output is streamed back through an emit callback and
// input is routed byte-wise into the PTY.
//
// The input router additionally watches the line being typed: when the
// operator submits a command starting with "log" it is intercepted at
// the prompt, the shell's pending line is cleared, and the action log
// tail is rendered into the terminal instead of reaching the shell.
package terminal
