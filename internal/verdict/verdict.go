// Package verdict implements the pure fold over per-test outcomes that
// derives a submission's final status.
package verdict

import (
	"strings"

	"github.com/jjudge-oj/judge-worker/types"
)

// Step is the result of folding one ExecOutcome: either Continue (with
// updated running maxima) or Terminal (with the final verdict).
type Step struct {
	Terminal bool
	Verdict  types.Verdict

	// Valid only when !Terminal: the running maxima to carry into the
	// next fold call.
	MaxCPUTimeMs     int64
	MaxPeakMemoryKb  int64
}

// Reduce applies the precedence rules in order:
//  1. wall_exceeded or cpu_time_ms > effective limit -> TLE
//  2. exit_code == 137 or a memory-error token in stderr -> MLE
//  3. exit_code == 127 -> SERVER_ERROR
//  4. exit_code != 0 -> RUNTIME_ERROR
//  5. stripped stdout != stripped expected -> WRONG_ANSWER
//  6. otherwise CONTINUE, updating running maxima.
func Reduce(outcome types.ExecOutcome, expected string, limits types.EffectiveLimits, memoryErrorTokens []string, prevMaxCPUTimeMs, prevMaxPeakMemoryKb int64) Step {
	effectiveTimeLimitMs := int64(limits.TimeLimitSec) * 1000

	if outcome.WallExceeded || outcome.CPUTimeMs > effectiveTimeLimitMs {
		return Step{Terminal: true, Verdict: types.VerdictTimeLimitExceeded}
	}
	if outcome.ExitCode == 137 || containsAnyToken(outcome.Stderr, memoryErrorTokens) {
		return Step{Terminal: true, Verdict: types.VerdictMemoryLimitExceeded}
	}
	if outcome.ExitCode == 127 {
		return Step{Terminal: true, Verdict: types.VerdictServerError}
	}
	if outcome.ExitCode != 0 {
		return Step{Terminal: true, Verdict: types.VerdictRuntimeError}
	}
	if strip(outcome.Stdout) != strip(expected) {
		return Step{Terminal: true, Verdict: types.VerdictWrongAnswer}
	}

	return Step{
		Terminal:        false,
		MaxCPUTimeMs:    max64(prevMaxCPUTimeMs, outcome.CPUTimeMs),
		MaxPeakMemoryKb: max64(prevMaxPeakMemoryKb, outcome.PeakMemoryKb),
	}
}

// strip trims trailing whitespace from the full payload; no per-line
// normalization.
func strip(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

func containsAnyToken(stderr string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(stderr, t) {
			return true
		}
	}
	return false
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
