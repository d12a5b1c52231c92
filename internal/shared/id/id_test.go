package id

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := gen.GenerateString()
		if seen[s] {
			t.Fatalf("duplicate ULID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestPrefixedIDs(t *testing.T) {
	cases := []struct {
		id     string
		prefix string
	}{
		{NewConnID().String(), "conn_"},
		{NewRequestID().String(), "req_"},
		{NewRecordID().String(), "rec_"},
	}

	for _, c := range cases {
		if !strings.HasPrefix(c.id, c.prefix) {
			t.Errorf("expected prefix %q, got %s", c.prefix, c.id)
		}
		raw := strings.TrimPrefix(c.id, c.prefix)
		if _, err := ulid.Parse(raw); err != nil {
			t.Errorf("expected valid ULID after prefix, got %s: %v", raw, err)
		}
	}
}
