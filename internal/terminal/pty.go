package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
)

const (
	defaultCols = 80
	defaultRows = 24
)

// clampGeometry replaces non-positive dimensions with the defaults.
func clampGeometry(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	return cols, rows
}

// openPTY allocates a master/slave pair sized to the client's viewport.
func openPTY(cols, rows int) (master, slave *os.File, err error) {
	master, slave, err = pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open pty: %w", err)
	}

	cols, rows = clampGeometry(cols, rows)
	if err := pty.Setsize(master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		master.Close()
		slave.Close()
		return nil, nil, fmt.Errorf("set pty size: %w", err)
	}
	return master, slave, nil
}

// spawnShell starts the configured shell with the slave end as its
// stdio and controlling terminal, in a fresh session and process group
// so teardown can signal the whole group.
func spawnShell(cfg config.TerminalConfig, slave *os.File) (*exec.Cmd, error) {
	var args []string
	if cfg.LoginShell {
		args = append(args, "-l")
	}

	cmd := exec.Command(cfg.Shell, args...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
	// Setctty makes the slave (child fd 0) the controlling TTY.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell %s: %w", cfg.Shell, err)
	}
	return cmd, nil
}

// resizePTY applies a new geometry to a live session's master.
func resizePTY(master *os.File, cols, rows int) error {
	cols, rows = clampGeometry(cols, rows)
	return pty.Setsize(master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}
