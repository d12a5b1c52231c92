package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCommand(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "log 5", "log 5"},
		{"trims whitespace", "  logs 10  ", "logs 10"},
		{"strips bracketed paste guards", "\x1b[200~log 5\x1b[201~", "log 5"},
		{"strips tilde-final sequences around bare command", "\x1b[200~logs\x1b[201~", "logs"},
		{"strips private mode sequences", "\x1b[?2004hls -la\x1b[?2004l", "ls -la"},
		{"drops bare escape", "lo\x1bg", "log"},
		{"drops control characters", "log\x01\x02 7", "log 7"},
		{"empty", "", ""},
		{"only noise", "\x1b[?2004h\x07\t", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeCommand(tc.in))
		})
	}
}

func TestClampGeometry(t *testing.T) {
	cols, rows := clampGeometry(0, 0)
	assert.Equal(t, 80, cols)
	assert.Equal(t, 24, rows)

	cols, rows = clampGeometry(-5, -1)
	assert.Equal(t, 80, cols)
	assert.Equal(t, 24, rows)

	cols, rows = clampGeometry(132, 43)
	assert.Equal(t, 132, cols)
	assert.Equal(t, 43, rows)
}
