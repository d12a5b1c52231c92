package terminal

import (
	"regexp"
	"strings"
	"unicode"
)

// csiRE matches ANSI CSI sequences such as ESC[?2004h or ESC[200~,
// which terminals inject around pasted or echoed input. The final byte
// of a CSI sequence spans 0x40..0x7E, so tilde-terminated forms like
// the bracketed-paste guards are covered too.
var csiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[@-~]`)

// sanitizeCommand reduces a raw typed line to plain text: CSI sequences
// stripped, stray ESC bytes dropped, only printable characters and
// spaces kept, surrounding whitespace trimmed.
func sanitizeCommand(s string) string {
	s = csiRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\x1b", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}
