package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installFakeDocker points PATH at a shell script standing in for the real
// docker CLI: it strips every docker-run flag and execs whatever argv
// followed the image name directly on the host. That is enough to exercise
// Executor's argument construction, stdin/stdout wiring, and timeout
// handling without a real container runtime.
func installFakeDocker(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := `#!/bin/sh
found=0
args=""
for arg in "$@"; do
  if [ "$found" = "1" ]; then
    args="$args \"$arg\""
  elif [ "$arg" = "jjudge/sandbox-runtime:latest" ]; then
    found=1
  fi
done
eval exec $args
`
	path := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	old := os.Getenv("PATH")
	require.NoError(t, os.Setenv("PATH", dir+string(os.PathListSeparator)+old))
	t.Cleanup(func() { os.Setenv("PATH", old) })
}

func basicLimits() Limits {
	return Limits{
		MemoryMb: 256, CPUCount: 1, WallTimeSec: 2, Pids: 32, TmpfsMb: 16,
		RunAsUID: 1000, RunAsGID: 1000, WriteableWorkspace: false,
	}
}

func TestExecuteSuccess(t *testing.T) {
	installFakeDocker(t)
	e := NewExecutor("docker", nil)

	outcome, err := e.Execute(context.Background(), []string{"bash", "-c", "echo hello"}, t.TempDir(), nil, basicLimits())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "hello\n", outcome.Stdout)
	assert.False(t, outcome.WallExceeded)
}

func TestExecuteNonZeroExit(t *testing.T) {
	installFakeDocker(t)
	e := NewExecutor("docker", nil)

	outcome, err := e.Execute(context.Background(), []string{"bash", "-c", "exit 42"}, t.TempDir(), nil, basicLimits())
	require.NoError(t, err)
	assert.Equal(t, 42, outcome.ExitCode)
}

func TestExecuteStdinPiped(t *testing.T) {
	installFakeDocker(t)
	e := NewExecutor("docker", nil)

	outcome, err := e.Execute(context.Background(), []string{"bash", "-c", "cat"}, t.TempDir(), []byte("ping"), basicLimits())
	require.NoError(t, err)
	assert.Equal(t, "ping", outcome.Stdout)
}

func TestExecuteWallTimeout(t *testing.T) {
	installFakeDocker(t)
	e := NewExecutor("docker", nil)

	limits := basicLimits()
	limits.WallTimeSec = 1
	start := time.Now()
	outcome, err := e.Execute(context.Background(), []string{"bash", "-c", "sleep 30"}, t.TempDir(), nil, limits)
	require.NoError(t, err)
	assert.True(t, outcome.WallExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteRuntimeMissing(t *testing.T) {
	e := NewExecutor("jjudge-nonexistent-runtime", nil)
	_, err := e.Execute(context.Background(), []string{"true"}, t.TempDir(), nil, basicLimits())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuntimeMissing)
}

func TestResolveHostPathLongestPrefix(t *testing.T) {
	e := NewExecutor("docker", []PathMapping{
		{ContainerRoot: "/data", HostRoot: "/host/data"},
		{ContainerRoot: "/data/temp", HostRoot: "/host/temp"},
	})
	assert.Equal(t, "/host/temp/sub1/2", e.resolveHostPath("/data/temp/sub1/2"))
	assert.Equal(t, "/host/data/other", e.resolveHostPath("/data/other"))
	assert.Equal(t, "/unmapped/path", e.resolveHostPath("/unmapped/path"))
}
