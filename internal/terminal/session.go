package terminal

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/monitoring"
)

// killGrace is how long a signaled shell gets to exit before SIGKILL.
const killGrace = 100 * time.Millisecond

// EmitFunc delivers terminal output text to one remote client.
type EmitFunc func(text string)

// LogTailer serves the pretty-printed action log tail rendered by the
// "log" pseudo-command.
type LogTailer interface {
	Tail(n int) []string
}

// Session is one live PTY shell bound to one connection.
type Session struct {
	id     string
	master *os.File
	slave  *os.File
	cmd    *exec.Cmd
	emit   EmitFunc
	tailer LogTailer

	metrics *monitoring.Metrics
	logger  *logging.Logger

	mu      sync.Mutex
	alive   bool
	lineBuf []rune

	// closed by the wait goroutine once the shell has exited
	exited chan struct{}
}

func (s *Session) isAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Close tears the session down: signal the shell's process group,
// give it a short grace, escalate to SIGKILL, then close both PTY
// descriptors. Safe to call from any goroutine, any number of times;
// only the first call acts.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	s.mu.Unlock()

	if pgid, err := syscall.Getpgid(s.cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
	}

	select {
	case <-s.exited:
	case <-time.After(killGrace):
		if pgid, err := syscall.Getpgid(s.cmd.Process.Pid); err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			_ = s.cmd.Process.Kill()
		}
	}

	_ = s.master.Close()
	_ = s.slave.Close()

	if s.metrics != nil {
		s.metrics.TerminalSessionsActive.Dec()
	}
	s.logger.Debug("terminal session closed", zap.String("session", s.id))
}

// writeMaster feeds bytes into the shell. Write errors are swallowed:
// a dying PTY is detected by the reader loop, not here.
func (s *Session) writeMaster(p []byte) {
	if _, err := s.master.Write(p); err != nil {
		s.logger.Debug("pty write failed",
			zap.String("session", s.id),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.TerminalBytesIn.Add(float64(len(p)))
	}
}
