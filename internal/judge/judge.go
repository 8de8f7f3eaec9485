// Package judge implements the submission orchestrator: the state machine
// RECEIVED -> MATERIALIZED -> COMPILED? -> JUDGING -> TERMINAL that ties
// the sandbox executor, language adapter, test-data provider, workspace
// manager, verdict engine, and progress bus together.
package judge

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/jjudge-oj/judge-worker/internal/lang"
	"github.com/jjudge-oj/judge-worker/internal/progress"
	"github.com/jjudge-oj/judge-worker/internal/sandbox"
	"github.com/jjudge-oj/judge-worker/internal/testdata"
	"github.com/jjudge-oj/judge-worker/internal/verdict"
	"github.com/jjudge-oj/judge-worker/internal/workspace"
	"github.com/jjudge-oj/judge-worker/types"
)

const (
	compileWallTimeSec = 90
	defaultPids        = 32
	defaultTmpfsMb     = 64
	sandboxUID         = 1000
	sandboxGID         = 1000
)

// Result is what Judge returns: a verdict plus the optional measured
// runtime and peak memory.
type Result struct {
	Verdict   types.Verdict
	RuntimeMs *int64
	MemoryKb  *int64
}

// Executor is the subset of sandbox.Executor the orchestrator needs,
// narrowed to an interface so tests can substitute a fake sandbox.
type Executor interface {
	Execute(ctx context.Context, cmd []string, cwd string, stdin []byte, limits sandbox.Limits) (types.ExecOutcome, error)
}

// WorkspaceManager is the subset of workspace.Manager the orchestrator needs.
type WorkspaceManager interface {
	Materialize(sub types.Submission, adapter lang.Adapter) (workspace.Workspace, error)
	Destroy(sub types.Submission) error
}

// TestDataProvider is the subset of testdata.Provider the orchestrator needs.
type TestDataProvider interface {
	Fetch(ctx context.Context, problemID int64) ([]types.TestCase, error)
}

// Judge ties the sandbox, workspace, test-data, and progress collaborators
// together for one submission at a time.
type Judge struct {
	executor  Executor
	workspace WorkspaceManager
	testdata  TestDataProvider
	progress  progress.Publisher
}

// New builds a Judge from its collaborators.
func New(executor Executor, ws WorkspaceManager, td TestDataProvider, pub progress.Publisher) *Judge {
	return &Judge{executor: executor, workspace: ws, testdata: td, progress: pub}
}

// Judge runs one submission end to end. The workspace is always destroyed
// on return, regardless of verdict.
func (j *Judge) Judge(ctx context.Context, sub types.Submission) Result {
	adapter, ok := lang.Lookup(sub.Language)
	if !ok {
		j.publish(ctx, sub, progressEvent(sub, string(types.VerdictServerError), 100, 0, 0, nil, nil))
		return Result{Verdict: types.VerdictServerError}
	}

	ws, err := j.workspace.Materialize(sub, adapter)
	if err != nil {
		log.Printf("judge: materialize submission %d: %v", sub.SubmissionID, err)
		j.cleanup(sub)
		j.publish(ctx, sub, progressEvent(sub, string(types.VerdictServerError), 100, 0, 0, nil, nil))
		return Result{Verdict: types.VerdictServerError}
	}
	defer j.cleanup(sub)

	limits := adapter.InflateLimits(sub.TimeLimitSec, sub.MemoryLimitMb)

	if adapter.NeedsCompile() {
		if verdictOut, done := j.compile(ctx, sub, adapter, ws.Path, limits); done {
			j.publish(ctx, sub, progressEvent(sub, string(verdictOut), 100, 0, 0, nil, nil))
			return Result{Verdict: verdictOut}
		}
	}

	cases, err := j.testdata.Fetch(ctx, sub.ProblemID)
	if err != nil || len(cases) == 0 {
		log.Printf("judge: fetch test data for submission %d: %v", sub.SubmissionID, err)
		j.publish(ctx, sub, progressEvent(sub, string(types.VerdictServerError), 100, 0, 0, nil, nil))
		return Result{Verdict: types.VerdictServerError}
	}

	total := len(cases)
	j.publish(ctx, sub, progressEvent(sub, "JUDGING", 0, 0, total, nil, nil))

	return j.runLoop(ctx, sub, adapter, ws.Path, limits, cases)
}

// compile invokes the language adapter's compile recipe via the sandbox.
// Returns (verdict, true) when the submission must terminate: COMPILE_ERROR
// for a failed compile, SERVER_ERROR when the sandbox itself fails.
func (j *Judge) compile(ctx context.Context, sub types.Submission, adapter lang.Adapter, workspacePath string, limits types.EffectiveLimits) (types.Verdict, bool) {
	cmd := adapter.CompileCommand(workspacePath)
	if len(cmd) == 0 {
		return "", false
	}

	compileLimits := sandbox.Limits{
		MemoryMb: limits.MemoryLimitMb, CPUCount: 1, WallTimeSec: compileWallTimeSec,
		Pids: defaultPids, TmpfsMb: defaultTmpfsMb,
		RunAsUID: sandboxUID, RunAsGID: sandboxGID, WriteableWorkspace: true,
	}

	outcome, err := j.executor.Execute(ctx, cmd, workspacePath, nil, compileLimits)
	if err != nil {
		log.Printf("judge: compile submission %d: %v", sub.SubmissionID, err)
		return types.VerdictServerError, true
	}

	isError := outcome.ExitCode != 0
	if sub.Language == types.LanguagePython {
		isError = lang.IsInterpretedCompileError(outcome.ExitCode, outcome.Stderr)
	}
	if isError {
		return types.VerdictCompileError, true
	}
	return "", false
}

// runLoop executes each test case in order, folding outcomes through the
// verdict engine, short-circuiting on the first non-ACCEPTED result.
func (j *Judge) runLoop(ctx context.Context, sub types.Submission, adapter lang.Adapter, workspacePath string, limits types.EffectiveLimits, cases []types.TestCase) Result {
	runLimits := sandbox.Limits{
		MemoryMb: limits.MemoryLimitMb, CPUCount: 1, WallTimeSec: limits.TimeLimitSec,
		Pids: defaultPids, TmpfsMb: defaultTmpfsMb,
		RunAsUID: sandboxUID, RunAsGID: sandboxGID, WriteableWorkspace: false,
	}
	tokens := adapter.MemoryErrorTokens()

	var maxCPUTimeMs, maxPeakMemoryKb int64
	total := len(cases)

	for i, tc := range cases {
		cmd := adapter.RunCommand(workspacePath, limits)
		raw, err := j.executor.Execute(ctx, cmd, workspacePath, []byte(tc.Input), runLimits)
		if err != nil {
			log.Printf("judge: run submission %d test %d: %v", sub.SubmissionID, i+1, err)
			j.publish(ctx, sub, progressEvent(sub, string(types.VerdictServerError), 100, i+1, total, nil, nil))
			return Result{Verdict: types.VerdictServerError}
		}

		cpuTimeMs, peakMemoryKb := lang.ParseTimingShim(raw.Stderr)
		raw.CPUTimeMs = cpuTimeMs
		raw.PeakMemoryKb = peakMemoryKb

		step := verdict.Reduce(raw, tc.Expected, limits, tokens, maxCPUTimeMs, maxPeakMemoryKb)
		if step.Terminal {
			j.publish(ctx, sub, progressEvent(sub, string(step.Verdict), 100, i+1, total, nil, nil))
			return Result{Verdict: step.Verdict}
		}

		maxCPUTimeMs, maxPeakMemoryKb = step.MaxCPUTimeMs, step.MaxPeakMemoryKb
		if i+1 < total {
			progressPct := int(math.Floor(float64(i+1) / float64(total) * 100))
			j.publish(ctx, sub, progressEvent(sub, "JUDGING", progressPct, i+1, total, nil, nil))
		}
	}

	j.publish(ctx, sub, progressEvent(sub, string(types.VerdictAccepted), 100, total, total, &maxCPUTimeMs, &maxPeakMemoryKb))
	return Result{Verdict: types.VerdictAccepted, RuntimeMs: &maxCPUTimeMs, MemoryKb: &maxPeakMemoryKb}
}

func (j *Judge) cleanup(sub types.Submission) {
	if err := j.workspace.Destroy(sub); err != nil {
		log.Printf("judge: cleanup submission %d: %v", sub.SubmissionID, err)
	}
}

func (j *Judge) publish(ctx context.Context, sub types.Submission, event types.ProgressEvent) {
	if err := j.progress.Publish(ctx, event); err != nil {
		log.Printf("judge: publish progress for submission %d: %v", sub.SubmissionID, err)
	}
}

func progressEvent(sub types.Submission, status string, progressPct, current, total int, runtimeMs, memoryKb *int64) types.ProgressEvent {
	return types.ProgressEvent{
		SubmissionID: sub.SubmissionID,
		Username:     sub.Username,
		Status:       status,
		Progress:     progressPct,
		CurrentTest:  current,
		TotalTests:   total,
		RuntimeMs:    runtimeMs,
		MemoryKb:     memoryKb,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
	}
}
