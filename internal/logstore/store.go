// Package logstore persists bench actions as rolling daily JSONL files
// (bench_actions_YYYY-MM-DD.jsonl) and serves the tail queries used by
// the REST API and the terminal "logs" pseudo-command.
package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/shared/id"
)

const (
	filePrefix = "bench_actions_"
	fileSuffix = ".jsonl"
)

// Store is a concurrency-safe append-only action log.
type Store struct {
	dir           string
	retentionDays int
	logger        *logging.Logger

	mu  sync.Mutex
	now func() time.Time // injectable clock for tests
}

// New creates a store writing under dir. The directory is created lazily
// on first append.
func New(dir string, retentionDays int, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		dir:           dir,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// pathForToday returns today's log file path (UTC day boundary).
func (s *Store) pathForToday() string {
	day := s.now().UTC().Format("2006-01-02")
	return filepath.Join(s.dir, filePrefix+day+fileSuffix)
}

// TodayPath exposes today's file path for API responses.
func (s *Store) TodayPath() string { return s.pathForToday() }

// Append writes one JSON record to today's file. It never returns an
// error: logging must not break the controller.
func (s *Store) Append(event string, fields map[string]interface{}) {
	rec := map[string]interface{}{
		"ts":    s.now().UTC().Format(time.RFC3339Nano),
		"id":    id.NewRecordID().String(),
		"event": event,
	}
	for k, v := range fields {
		rec[k] = v
	}

	line, err := sonic.Marshal(rec)
	if err != nil {
		s.logger.Warn("action log encode failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("action log dir create failed", zap.Error(err))
		return
	}

	f, err := os.OpenFile(s.pathForToday(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("action log open failed", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("action log write failed", zap.Error(err))
	}
}

// Tail returns the last n records of today's file pretty-printed, one
// line per record, most recent last. It never fails: missing or empty
// files yield a human-readable placeholder.
func (s *Store) Tail(n int) []string {
	lines, err := s.readToday()
	if err != nil {
		if os.IsNotExist(err) {
			return []string{"[no logs for today]"}
		}
		return []string{fmt.Sprintf("[log read error: %v]", err)}
	}
	if len(lines) == 0 {
		return []string{"[log file empty]"}
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		out = append(out, formatRecord(ln))
	}
	return out
}

// TailRecords returns the last n records parsed as JSON objects, most
// recent last. Unparseable lines are wrapped as {"raw": line}.
func (s *Store) TailRecords(n int) ([]map[string]interface{}, error) {
	lines, err := s.readToday()
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]interface{}{}, nil
		}
		return nil, err
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	out := make([]map[string]interface{}, 0, len(lines))
	for _, ln := range lines {
		var rec map[string]interface{}
		if err := sonic.Unmarshal([]byte(ln), &rec); err != nil {
			rec = map[string]interface{}{"raw": ln}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Purge deletes daily files strictly older than the retention window.
// Returns the number of deleted files; never returns an error.
func (s *Store) Purge() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays).Truncate(24 * time.Hour)
	deleted := 0
	for _, e := range entries {
		day, ok := parseDay(e.Name())
		if !ok {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				deleted++
			}
		}
	}
	if deleted > 0 {
		s.logger.Info("purged old action logs", zap.Int("files", deleted))
	}
	return deleted
}

// readToday returns today's file split into non-empty lines.
func (s *Store) readToday() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pathForToday())
	if err != nil {
		return nil, err
	}

	raw := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	lines := raw[:0]
	for _, ln := range raw {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	return lines, nil
}

// formatRecord turns one JSONL line into the compact human form shown
// in the terminal: "ts  event  bench  rail  ON|OFF".
func formatRecord(line string) string {
	var rec map[string]interface{}
	if err := sonic.Unmarshal([]byte(line), &rec); err != nil {
		return line
	}

	var sb strings.Builder
	sb.WriteString(str(rec["ts"]))
	sb.WriteString("  ")
	sb.WriteString(str(rec["event"]))
	if bench := str(rec["bench"]); bench != "" {
		sb.WriteString("  ")
		sb.WriteString(bench)
	}
	if rail := str(rec["rail"]); rail != "" {
		sb.WriteString("  ")
		sb.WriteString(rail)
	}
	if state, ok := rec["state"].(bool); ok {
		if state {
			sb.WriteString("  ON")
		} else {
			sb.WriteString("  OFF")
		}
	}
	return sb.String()
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// parseDay extracts the date from a bench_actions_YYYY-MM-DD.jsonl name.
func parseDay(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	ds := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	day, err := time.ParseInLocation("2006-01-02", ds, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
