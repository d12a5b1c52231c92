package terminal

import (
	"strconv"
	"strings"
)

// Log tail bounds for the terminal pseudo-command.
const (
	tailDefault = 50
	tailMax     = 500
)

// clearLine is Ctrl+U followed by CR: wipe whatever the shell has
// buffered for the current line and redraw a fresh prompt.
const clearLine = "\x15\r"

// routeInput processes one chunk of typed input character by
// character, mirroring everything into the PTY except the Enter of an
// intercepted log command.
func (s *Session) routeInput(text string) {
	for _, ch := range text {
		switch {
		case ch == 0x7f || ch == '\b':
			s.mu.Lock()
			if len(s.lineBuf) > 0 {
				s.lineBuf = s.lineBuf[:len(s.lineBuf)-1]
			}
			s.mu.Unlock()
			s.writeMaster([]byte(string(ch)))

		case ch == '\r' || ch == '\n':
			s.mu.Lock()
			line := string(s.lineBuf)
			s.lineBuf = s.lineBuf[:0]
			s.mu.Unlock()

			cmd := sanitizeCommand(line)
			if strings.HasPrefix(strings.ToLower(cmd), "log") {
				// The shell already echoed the typed command; clear its
				// pending line and do not forward Enter.
				s.writeMaster([]byte(clearLine))
				if s.metrics != nil {
					s.metrics.TerminalIntercepts.Inc()
				}
				go s.emitLogTail(cmd)
				continue
			}
			s.writeMaster([]byte(string(ch)))

		default:
			s.mu.Lock()
			s.lineBuf = append(s.lineBuf, ch)
			s.mu.Unlock()
			s.writeMaster([]byte(string(ch)))
		}
	}
}

// emitLogTail renders the action log tail for a sanitized "log [n]"
// command line directly to the client.
func (s *Session) emitLogTail(cmd string) {
	n := tailDefault
	if parts := strings.Fields(cmd); len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			n = v
			if n < 1 {
				n = 1
			}
			if n > tailMax {
				n = tailMax
			}
		}
	}

	lines := []string{"[log store unavailable]"}
	if s.tailer != nil {
		lines = s.tailer.Tail(n)
	}
	s.emit("\r\n" + strings.Join(lines, "\r\n") + "\r\n")
}
