package terminal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/monitoring"
)

const (
	// readPoll bounds each master read so the loop can notice teardown.
	readPoll = 250 * time.Millisecond
	readBuf  = 4096
)

// Manager owns every live terminal session, keyed by connection id.
type Manager struct {
	cfg     config.TerminalConfig
	tailer  LogTailer
	metrics *monitoring.Metrics
	logger  *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(cfg config.TerminalConfig, tailer LogTailer, metrics *monitoring.Metrics, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		tailer:   tailer,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open allocates a PTY, spawns the shell and starts streaming output
// through emit. An existing session under the same id is torn down
// first, so a reconnecting client always gets a fresh shell.
func (m *Manager) Open(id string, cols, rows int, emit EmitFunc) error {
	m.mu.Lock()
	old := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	master, slave, err := openPTY(cols, rows)
	if err != nil {
		return err
	}

	cmd, err := spawnShell(m.cfg, slave)
	if err != nil {
		master.Close()
		slave.Close()
		return err
	}

	s := &Session{
		id:      id,
		master:  master,
		slave:   slave,
		cmd:     cmd,
		emit:    emit,
		tailer:  m.tailer,
		metrics: m.metrics,
		logger:  m.logger,
		alive:   true,
		exited:  make(chan struct{}),
	}

	// Reap the shell as soon as it exits; teardown keys off this.
	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()

	m.install(id, s)

	if m.metrics != nil {
		m.metrics.TerminalSessionsTotal.Inc()
		m.metrics.TerminalSessionsActive.Inc()
	}
	m.logger.Info("terminal session opened",
		zap.String("session", id),
		zap.String("shell", m.cfg.Shell),
	)

	go m.readLoop(s)

	emit("\r\n[connected]\r\n")
	return nil
}

// install publishes a session under its id. A session that raced in
// between the teardown phase of Open and this point is displaced and
// closed, so at most one live session per id ever exists even if the
// transport were to stop serializing events per connection.
func (m *Manager) install(id string, s *Session) {
	m.mu.Lock()
	displaced := m.sessions[id]
	m.sessions[id] = s
	m.mu.Unlock()

	if displaced != nil && displaced != s {
		displaced.Close()
	}
}

// readLoop streams PTY output to the client until the shell exits or
// the session is closed, then finishes teardown and drops the session
// from the registry.
func (m *Manager) readLoop(s *Session) {
	buf := make([]byte, readBuf)
	for s.isAlive() {
		_ = s.master.SetReadDeadline(time.Now().Add(readPoll))
		n, err := s.master.Read(buf)
		if n > 0 {
			// Best-effort text: bytes that don't decode are dropped
			// rather than poisoning the transport frame.
			s.emit(strings.ToValidUTF8(string(buf[:n]), ""))
			if m.metrics != nil {
				m.metrics.TerminalBytesOut.Add(float64(n))
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			break
		}
	}

	s.Close()
	m.mu.Lock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()
}

// Route feeds typed input into a session's input router.
func (m *Manager) Route(id, text string) {
	if text == "" {
		return
	}
	if s := m.get(id); s != nil {
		s.routeInput(text)
	}
}

// Resize applies a new terminal geometry to a session.
func (m *Manager) Resize(id string, cols, rows int) error {
	s := m.get(id)
	if s == nil {
		return fmt.Errorf("no session %q", id)
	}
	return resizePTY(s.master, cols, rows)
}

// Disconnect tears down the session for a departed connection.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// CloseAll tears down every live session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}
