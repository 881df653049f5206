package chart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubInterpreter writes an executable script standing in for python. The
// executor always passes isolation flags and the source on stdin; the stub
// ignores its argv.
func stubInterpreter(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestExecutor(t *testing.T, script string, timeout time.Duration) *Executor {
	t.Helper()
	return NewExecutor(ExecutorConfig{
		Enabled: true,
		Path:    stubInterpreter(t, script),
		Timeout: timeout,
	}, nil)
}

func TestExecutorRunsSource(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, `cat > /dev/null
printf '<svg xmlns="http://www.w3.org/2000/svg"></svg>'`, 0)

	out, err := exec.Execute(context.Background(), "import sys\nprint(1)\n")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<svg")
}

func TestExecutorPassesSourceOnStdin(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, "cat", 0)

	source := "import math\nvalues = [1.0, 2.0]\n"
	out, err := exec.Execute(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, source, string(out))
}

func TestExecutorIsolatesEnvironment(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, `cat > /dev/null
printf 'HOME=%s MPL=%s NOBYTECODE=%s' "$HOME" "$MPLCONFIGDIR" "$PYTHONDONTWRITEBYTECODE"`, 0)

	out, err := exec.Execute(context.Background(), "import sys\n")
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "HOME= "), "parent environment must not leak: %q", text)
	assert.Contains(t, text, "MPL=")
	assert.Contains(t, text, "chartexec-")
	assert.Contains(t, text, "NOBYTECODE=1")
}

func TestExecutorRunsInScratchDir(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, "cat > /dev/null\npwd", 0)

	out, err := exec.Execute(context.Background(), "import sys\n")
	require.NoError(t, err)

	dir := strings.TrimSpace(string(out))
	assert.Contains(t, dir, "chartexec-")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "scratch dir should be removed after execution")
}

func TestExecutorRejectsDisallowedImports(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), "ran")
	exec := newTestExecutor(t, fmt.Sprintf("date > %s\nprintf 'x'", marker), 0)

	cases := []struct {
		name   string
		source string
	}{
		{"import os", "import os\nos.system(\"id\")\n"},
		{"from urllib", "from urllib import request\n"},
		{"comma list", "import math, socket\n"},
		{"indented", "if True:\n    import subprocess\n"},
		{"dunder import", "__import__(\"os\").system(\"id\")\n"},
		{"importlib", "import importlib\n"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), tc.source)
			require.Error(t, err)
		})
	}

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "interpreter must not run for rejected source")
}

func TestScanImportsAllowsChartModules(t *testing.T) {
	t.Parallel()

	sources := []string{
		"import matplotlib\nmatplotlib.use(\"Agg\")\nimport matplotlib.pyplot as plt\nimport sys\n",
		"from matplotlib import pyplot\n",
		"import numpy, math\n",
		"import json\nimport io\n",
	}
	for _, source := range sources {
		assert.NoError(t, scanImports(source), "source %q", source)
	}
}

func TestExecutorTimeout(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, "sleep 30", 100*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), "import sys\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutorEmptyOutput(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, "cat > /dev/null", 0)

	_, err := exec.Execute(context.Background(), "import sys\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output")
}

func TestExecutorDisabled(t *testing.T) {
	t.Parallel()

	var nilExec *Executor
	assert.False(t, nilExec.Enabled())

	disabled := NewExecutor(ExecutorConfig{Enabled: false, Path: "/usr/bin/python3"}, nil)
	assert.False(t, disabled.Enabled())

	noPath := NewExecutor(ExecutorConfig{Enabled: true}, nil)
	assert.False(t, noPath.Enabled())

	_, err := noPath.Execute(context.Background(), "import sys\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
