package chart

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/subprocess"
)

const (
	// DefaultExecTimeout bounds one interpreter run.
	DefaultExecTimeout = 10 * time.Second

	maxImageBytes = 8 << 20
)

// allowedModules is the sandbox import allow-list. Everything the chart
// templates need is CPU-bound; filesystem and network modules stay out.
var allowedModules = map[string]struct{}{
	"matplotlib": {},
	"numpy":      {},
	"math":       {},
	"json":       {},
	"io":         {},
	"sys":        {},
}

// ExecutorConfig points at the python interpreter used for executed mode.
// An empty Path or Enabled=false leaves every request in code mode.
type ExecutorConfig struct {
	Enabled bool
	Path    string
	Timeout time.Duration
}

// Executor runs chart source in an isolated interpreter: no inherited
// environment, a scratch working directory, and a hard wall-clock limit.
type Executor struct {
	cfg    ExecutorConfig
	logger logging.Logger
}

func NewExecutor(cfg ExecutorConfig, logger logging.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExecTimeout
	}
	return &Executor{cfg: cfg, logger: logging.OrNop(logger)}
}

// Enabled reports whether executed mode is available.
func (e *Executor) Enabled() bool {
	return e != nil && e.cfg.Enabled && e.cfg.Path != ""
}

// Execute checks the source against the import allow-list, runs it, and
// returns whatever the script wrote to stdout. The child sees only
// MPLCONFIGDIR and PYTHONDONTWRITEBYTECODE, both pointing into a temp dir
// removed afterwards.
func (e *Executor) Execute(ctx context.Context, source string) ([]byte, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("chart executor not configured")
	}
	if err := scanImports(source); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "chartexec-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	cfg := subprocess.Config{
		Command:    e.cfg.Path,
		Args:       []string{"-I", "-B", "-"},
		WorkingDir: scratch,
		Env: map[string]string{
			"MPLCONFIGDIR":            scratch,
			"PYTHONDONTWRITEBYTECODE": "1",
		},
		Timeout: e.cfg.Timeout,
	}

	start := time.Now()
	output, err := subprocess.Run(ctx, cfg, []byte(source), maxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("chart interpreter: %w", err)
	}
	if len(bytes.TrimSpace(output)) == 0 {
		return nil, fmt.Errorf("chart interpreter produced no output")
	}
	e.logger.Debug("chart executed in %s (%d bytes)", time.Since(start).Round(time.Millisecond), len(output))
	return output, nil
}

// scanImports walks import statements and rejects any module outside the
// allow-list before the interpreter ever starts. Dynamic import escapes are
// rejected outright.
func scanImports(source string) error {
	if strings.Contains(source, "__import__") {
		return fmt.Errorf("dynamic imports are not permitted")
	}
	if strings.Contains(source, "importlib") {
		return fmt.Errorf("importlib is not permitted")
	}
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "from "):
			mod := rootModule(strings.TrimPrefix(trimmed, "from "))
			if err := checkModule(mod); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "import "):
			for _, part := range strings.Split(strings.TrimPrefix(trimmed, "import "), ",") {
				if err := checkModule(rootModule(part)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkModule(mod string) error {
	if mod == "" {
		return nil
	}
	if _, ok := allowedModules[mod]; !ok {
		return fmt.Errorf("module %q is not in the sandbox allow-list", mod)
	}
	return nil
}

// rootModule reduces "matplotlib.pyplot as plt" to "matplotlib".
func rootModule(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}
