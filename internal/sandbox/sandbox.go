// Package sandbox runs one command under CPU/memory/time/network/filesystem
// caps and returns a structured result, shelling out to the docker CLI the
// same way the judging pack's secure sandbox does.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jjudge-oj/judge-worker/types"
)

// Limits bounds one sandboxed invocation.
type Limits struct {
	MemoryMb            int
	CPUCount            int
	WallTimeSec         int
	Pids                int
	TmpfsMb             int
	RunAsUID, RunAsGID  int
	WriteableWorkspace  bool // true during compile, false during run
}

const killGrace = 5 * time.Second

// ErrRuntimeMissing is returned when the configured sandbox runtime binary
// cannot be found or invoked at all.
var ErrRuntimeMissing = errors.New("sandbox: runtime missing")

// PathMapping translates an in-container path to the host path that must
// actually be bind-mounted, for when the judge itself runs inside a
// container.
type PathMapping struct {
	ContainerRoot string
	HostRoot      string
}

// Executor runs commands inside the configured container runtime.
type Executor struct {
	runtime  string // e.g. "docker"
	mappings []PathMapping // ordered, longest container-root prefix first
}

// NewExecutor builds an Executor. mappings need not be pre-sorted; they are
// sorted by descending ContainerRoot length so the longest-prefix match in
// resolveHostPath is correct regardless of caller order.
func NewExecutor(runtime string, mappings []PathMapping) *Executor {
	sorted := make([]PathMapping, len(mappings))
	copy(sorted, mappings)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].ContainerRoot) > len(sorted[j].ContainerRoot)
	})
	return &Executor{runtime: runtime, mappings: sorted}
}

// resolveHostPath applies the longest-prefix-match translation; unknown
// paths pass through unchanged.
func (e *Executor) resolveHostPath(containerPath string) string {
	for _, m := range e.mappings {
		if m.ContainerRoot == "" {
			continue
		}
		if strings.HasPrefix(containerPath, m.ContainerRoot) {
			return m.HostRoot + strings.TrimPrefix(containerPath, m.ContainerRoot)
		}
	}
	return containerPath
}

// Execute runs cmd under the given limits, mounting cwd (translated to its
// host path) read-write or read-only depending on limits.WriteableWorkspace.
func (e *Executor) Execute(ctx context.Context, cmd []string, cwd string, stdin []byte, limits Limits) (types.ExecOutcome, error) {
	if _, err := exec.LookPath(e.runtime); err != nil {
		return types.ExecOutcome{}, fmt.Errorf("%w: %v", ErrRuntimeMissing, err)
	}

	hostCwd := e.resolveHostPath(cwd)
	mountMode := "ro"
	if limits.WriteableWorkspace {
		mountMode = "rw"
	}

	args := []string{
		"run", "--rm", "-i",
		"--name", "jjudge-run-" + uuid.NewString(),
		"--network", "none",
		"--read-only",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		fmt.Sprintf("--memory=%dm", limits.MemoryMb),
		fmt.Sprintf("--memory-swap=%dm", limits.MemoryMb),
		fmt.Sprintf("--cpus=%d", maxInt(limits.CPUCount, 1)),
		fmt.Sprintf("--pids-limit=%d", limits.Pids),
		fmt.Sprintf("--tmpfs=/tmp:rw,size=%dm", limits.TmpfsMb),
		fmt.Sprintf("--user=%d:%d", limits.RunAsUID, limits.RunAsGID),
		"-v", fmt.Sprintf("%s:%s:%s", hostCwd, cwd, mountMode),
		"-w", cwd,
		"--entrypoint", "",
	}
	args = append(args, sandboxImage)
	args = append(args, cmd...)

	wallTimeout := time.Duration(limits.WallTimeSec)*time.Second + 2*time.Second
	runCtx, cancel := context.WithTimeout(ctx, wallTimeout)
	defer cancel()

	execCmd := exec.Command(e.runtime, args...)
	execCmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr
	execCmd.SysProcAttr = setpgidAttr()

	if err := execCmd.Start(); err != nil {
		return types.ExecOutcome{}, fmt.Errorf("%w: %v", ErrRuntimeMissing, err)
	}

	done := make(chan error, 1)
	go func() { done <- execCmd.Wait() }()

	var wallExceeded bool
	var waitErr error
	select {
	case <-runCtx.Done():
		wallExceeded = true
		killProcessGroup(execCmd, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(killGrace):
			killProcessGroup(execCmd, syscall.SIGKILL)
			<-done
		}
	case waitErr = <-done:
	}

	exitCode := exitCodeOf(waitErr)
	return types.ExecOutcome{
		ExitCode:     exitCode,
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
		WallExceeded: wallExceeded,
	}, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sandboxImage is the container image every compile/run invocation uses.
// A single polyglot image keeps the docker-run recipe in CompileCommand /
// RunCommand language-agnostic; the image itself bundles the JDK, CPython,
// Kotlin, and Swift toolchains.
const sandboxImage = "jjudge/sandbox-runtime:latest"
