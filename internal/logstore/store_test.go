package logstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), 7, logging.NewNop())
}

func TestTailPlaceholderWhenEmpty(t *testing.T) {
	s := newTestStore(t)

	lines := s.Tail(50)
	require.Len(t, lines, 1)
	assert.Equal(t, "[no logs for today]", lines[0])
}

func TestAppendAndTail(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		s.Append("rail_change", map[string]interface{}{
			"bench": "bench1",
			"rail":  "hv",
			"state": i%2 == 0,
		})
	}

	lines := s.Tail(5)
	require.Len(t, lines, 5)
	for _, ln := range lines {
		assert.Contains(t, ln, "rail_change")
		assert.Contains(t, ln, "bench1")
		assert.Contains(t, ln, "hv")
	}
	// 10 appends alternating true/false; the last record is state=false
	assert.Contains(t, lines[len(lines)-1], "OFF")
}

func TestTailLargerThanFile(t *testing.T) {
	s := newTestStore(t)

	s.Append("service_mode_enter", map[string]interface{}{"bench": "bench2"})

	lines := s.Tail(500)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "service_mode_enter")
	assert.Contains(t, lines[0], "bench2")
}

func TestTailRecords(t *testing.T) {
	s := newTestStore(t)

	s.Append("usb_channel_change", map[string]interface{}{
		"channel": "port3_en",
		"state":   true,
	})

	recs, err := s.TailRecords(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "usb_channel_change", recs[0]["event"])
	assert.Equal(t, "port3_en", recs[0]["channel"])
	assert.Equal(t, true, recs[0]["state"])
	assert.NotEmpty(t, recs[0]["ts"])
	assert.NotEmpty(t, recs[0]["id"])
}

func TestTailRecordsEmptyStore(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.TailRecords(10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPurgeKeepsRecentFiles(t *testing.T) {
	s := newTestStore(t)

	// Write "today's" file, then jump the clock forward past retention.
	s.Append("rail_change", map[string]interface{}{"bench": "bench1"})

	base := time.Now()
	s.now = func() time.Time { return base.AddDate(0, 0, 3) }
	assert.Equal(t, 0, s.Purge(), "files inside the window must survive")

	s.now = func() time.Time { return base.AddDate(0, 0, 30) }
	assert.Equal(t, 1, s.Purge(), "files past retention must be deleted")

	// Everything gone: tail reports the placeholder again.
	lines := s.Tail(5)
	require.Len(t, lines, 1)
	assert.Equal(t, "[no logs for today]", lines[0])
}
