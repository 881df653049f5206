package subprocess

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultStdoutLimit bounds filter output; renderer SVG and chart sources
// stay far below this.
const DefaultStdoutLimit = 16 << 20

// ExitError carries the child's failure together with its stderr tail.
type ExitError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	tail := strings.TrimSpace(e.Stderr)
	if tail == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, tail)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Run executes the child as a filter: input to stdin, stdout collected up
// to limit bytes. The child is killed (whole process group) when ctx or
// the config timeout fires; in that case the context error is returned so
// callers can tell a timeout from a crash.
func Run(ctx context.Context, cfg Config, input []byte, limit int64) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if limit <= 0 {
		limit = DefaultStdoutLimit
	}

	proc, err := Start(runCtx, cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		if len(input) > 0 {
			if err := proc.Write(input); err != nil {
				return
			}
		}
		_ = proc.CloseStdin()
	}()

	type readResult struct {
		data []byte
		err  error
	}
	outCh := make(chan readResult, 1)
	go func() {
		data, err := readBounded(proc.Stdout(), limit)
		outCh <- readResult{data: data, err: err}
	}()

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			proc.Stop()
		case <-waitDone:
		}
	}()

	out := <-outCh
	if out.err != nil {
		// The child may be blocked writing past the limit; reap it.
		proc.Stop()
	}
	waitErr := proc.Wait()
	close(waitDone)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if out.err != nil {
		return nil, fmt.Errorf("%s stdout: %w", cfg.Command, out.err)
	}
	if waitErr != nil {
		return nil, &ExitError{Command: cfg.Command, Stderr: proc.StderrTail(), Err: waitErr}
	}
	return out.data, nil
}

// readBounded drains r up to limit bytes and fails when the child tries
// to emit more.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("output exceeds %d byte limit", limit)
	}
	return data, nil
}
