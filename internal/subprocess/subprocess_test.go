package subprocess

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEchoesStdinToStdout(t *testing.T) {
	out, err := Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "cat"},
		InheritEnv: true,
	}, []byte("flowchart TD\n  A --> B\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD\n  A --> B\n", string(out))
}

func TestRunCapturesExitFailureWithStderrTail(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "echo 'parse error on line 3' >&2; exit 4"},
		InheritEnv: true,
	}, nil, 0)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Error(), "parse error on line 3")
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "sleep 30"},
		InheritEnv: true,
		Timeout:    100 * time.Millisecond,
		GraceDelay: 50 * time.Millisecond,
	}, nil, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "child must not run to completion")
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "sleep 30"},
		InheritEnv: true,
		GraceDelay: 50 * time.Millisecond,
	}, nil, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunStdoutLimit(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "yes | head -c 4096"},
		InheritEnv: true,
		GraceDelay: 50 * time.Millisecond,
	}, nil, 128)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestRunIsolatedEnvironment(t *testing.T) {
	t.Setenv("DIAGRAM_TEST_SECRET", "leaky")

	out, err := Run(context.Background(), Config{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo ${DIAGRAM_TEST_SECRET:-clean}"},
		Env:     map[string]string{"PATH": "/usr/bin:/bin"},
	}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "clean\n", string(out))

	out, err = Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "echo ${DIAGRAM_TEST_SECRET:-clean}"},
		InheritEnv: true,
	}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "leaky\n", string(out))
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := Run(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "pwd"},
		WorkingDir: dir,
		InheritEnv: true,
	}, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, string(out), dir)
}

func TestStartRequiresCommand(t *testing.T) {
	_, err := Start(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStopIsIdempotentAfterExit(t *testing.T) {
	proc, err := Start(context.Background(), Config{
		Command:    "/bin/sh",
		Args:       []string{"-c", "exit 0"},
		InheritEnv: true,
	})
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	proc.Stop()
	proc.Stop()
}

func TestTailBufferKeepsSuffix(t *testing.T) {
	tail := newTailBuffer(8)

	_, err := tail.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "23456789", tail.String())

	_, err = tail.Write([]byte("AB"))
	require.NoError(t, err)
	assert.Equal(t, "456789AB", tail.String())

	_, err = tail.Write([]byte("this is far longer than the buffer"))
	require.NoError(t, err)
	assert.Equal(t, "e buffer", tail.String())
}
