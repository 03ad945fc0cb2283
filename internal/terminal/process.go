package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// Process is an interactive shell attached to a terminal device.
type Process interface {
	io.ReadWriter
	Resize(cols, rows int) error
	// Kill terminates the process. Killing an exited process is not an error.
	Kill() error
	// Wait blocks until the process has exited and reaps it.
	Wait() error
	Close() error
}

// Spawner starts shells rooted at a directory.
type Spawner interface {
	Spawn(dir string, cols, rows int) (Process, error)
}

// PTYSpawner runs Shell on a pseudo terminal.
type PTYSpawner struct {
	Shell string
	Env   []string
}

func (s PTYSpawner) Spawn(dir string, cols, rows int) (Process, error) {
	shell := s.Shell
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.Command(shell)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), s.Env...), "TERM=xterm-256color")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", shell, err)
	}
	return &ptyProcess{cmd: cmd, f: f}, nil
}

type ptyProcess struct {
	cmd       *exec.Cmd
	f         *os.File
	closeOnce sync.Once
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *ptyProcess) Resize(cols, rows int) error {
	return pty.Setsize(p.f, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

func (p *ptyProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *ptyProcess) Wait() error {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed or non-zero exit; both are normal ends of a shell
		return nil
	}
	return err
}

func (p *ptyProcess) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.f.Close() })
	return err
}
