// Package subprocess supervises short-lived renderer processes: the
// Mermaid CLI and the chart executor. Children run in their own process
// group so cancellation kills the whole tree, stderr is kept as a bounded
// tail for diagnostics, and stdout reads are size-limited.
package subprocess

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	defaultStderrTail = 8 * 1024
	defaultGraceDelay = 2 * time.Second
)

// Config describes one child process invocation.
type Config struct {
	Command    string
	Args       []string
	WorkingDir string

	// Env is the explicit environment. With InheritEnv the parent
	// environment is prepended; without it the child sees only Env,
	// which is how the chart executor stays isolated.
	Env        map[string]string
	InheritEnv bool

	// Timeout bounds the child's wall clock once started. Zero means
	// the caller's context is the only bound.
	Timeout time.Duration

	// GraceDelay is the pause between SIGTERM and SIGKILL on Stop.
	GraceDelay time.Duration

	// StderrTail bounds the retained stderr suffix.
	StderrTail int
}

// Process is a started child. It is not restartable; build a new one per
// invocation.
type Process struct {
	cfg        Config
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderrTail *tailBuffer
	pgid       int

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

// Start spawns the child in a fresh process group and begins collecting
// its stderr tail. The context only covers spawning; lifetime is managed
// through Wait and Stop.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("subprocess: command is required")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = buildEnv(cfg)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	p := &Process{
		cfg:        cfg,
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		stderrTail: newTailBuffer(cfg.StderrTail),
		done:       make(chan struct{}),
	}
	p.pgid, _ = syscall.Getpgid(cmd.Process.Pid)

	go func() {
		_, _ = io.Copy(p.stderrTail, stderr)
	}()

	return p, nil
}

func buildEnv(cfg Config) []string {
	env := make([]string, 0, len(cfg.Env)+1)
	if cfg.InheritEnv {
		env = append(env, os.Environ()...)
	}
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// Write sends bytes to the child's stdin.
func (p *Process) Write(data []byte) error {
	_, err := p.stdin.Write(data)
	return err
}

// CloseStdin signals EOF to the child.
func (p *Process) CloseStdin() error {
	return p.stdin.Close()
}

// Stdout returns the child's stdout. Callers must drain it before Wait.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// StderrTail returns the retained stderr suffix collected so far.
func (p *Process) StderrTail() string {
	return p.stderrTail.String()
}

// PID returns the child's process id, or 0 before Start.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait reaps the child once and caches the result.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	<-p.done
	return p.waitErr
}

// Stop terminates the whole process group: SIGTERM, a grace delay, then
// SIGKILL. It returns once the child has been reaped by Wait or the kill
// was delivered.
func (p *Process) Stop() {
	pgid := p.pgid
	if pgid == 0 {
		if p.cmd.Process == nil {
			return
		}
		pgid = p.cmd.Process.Pid
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	grace := p.cfg.GraceDelay
	if grace <= 0 {
		grace = defaultGraceDelay
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = defaultStderrTail
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return len(p), nil
	}
	if len(t.buf)+len(p) > t.max {
		excess := len(t.buf) + len(p) - t.max
		t.buf = t.buf[excess:]
	}
	t.buf = append(t.buf, p...)
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
