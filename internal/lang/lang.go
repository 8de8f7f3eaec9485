// Package lang provides per-language compile/run recipes for the sandbox
// executor: argument vectors, OOM token sets, and the timing-shim stderr
// parser.
package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jjudge-oj/judge-worker/types"
)

// Adapter is the per-language recipe contract.
type Adapter interface {
	// Extension is the source file extension written by the Workspace Manager.
	Extension() string

	// NeedsCompile reports whether CompileCommand must run before RunCommand.
	NeedsCompile() bool

	// CompileCommand returns the argv to execute inside the sandbox to
	// compile (or, for interpreted languages, byte-compile-check) the
	// workspace's source file. Empty when NeedsCompile is false.
	CompileCommand(workspaceMount string) []string

	// RunCommand returns the argv — already wrapped in the timing shim —
	// to execute inside the sandbox for one test case.
	RunCommand(workspaceMount string, limits types.EffectiveLimits) []string

	// MemoryErrorTokens are stderr substrings that denote an OOM the
	// language runtime caught before the process was killed.
	MemoryErrorTokens() []string

	// InflateLimits derives the effective (enforced) limits from the
	// problem-declared limits.
	InflateLimits(declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits
}

// CompileErrorTokens are the stderr substrings checked when classifying an
// interpreted-language compile check (a language's MemoryErrorTokens are
// not consulted there). Exit code is the primary signal; this substring check is a
// fallback for runtimes whose byte-compile step exits 0 even on failure.
var CompileErrorTokens = []string{"Error", "SyntaxError"}

// registry holds the built-in adapters, keyed by types.Language.
var registry = map[types.Language]Adapter{
	types.LanguageJava:   javaAdapter{},
	types.LanguagePython: pythonAdapter{},
	types.LanguageKotlin: kotlinAdapter{},
	types.LanguageSwift:  swiftAdapter{},
}

// Lookup returns the Adapter registered for lang, or false if unsupported.
func Lookup(language types.Language) (Adapter, bool) {
	a, ok := registry[language]
	return a, ok
}

// timingShimCommand wraps cmd so that, regardless of language, stderr
// always carries bash `time`'s user/sys lines and a MEMORY_KB sentinel
// read from the cgroup's memory.peak file.
func timingShimCommand(cmd string) []string {
	wrapped := fmt.Sprintf(
		"time %s; exit_code=$?; echo \"MEMORY_KB:$(($(cat /sys/fs/cgroup/memory.peak 2>/dev/null || echo 0) / 1024))\" >&2; exit $exit_code",
		cmd,
	)
	return []string{"bash", "-c", wrapped}
}

// ParseTimingShim extracts cpu time (user+sys, milliseconds) and peak
// memory (KB) from a timingShimCommand's stderr output. Shared across
// adapters since the shim format is uniform.
func ParseTimingShim(stderr string) (cpuTimeMs int64, peakMemoryKb int64) {
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		switch {
		case strings.HasPrefix(line, "user") || strings.HasPrefix(line, "sys"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			if ms, ok := parseGoTime(fields[1]); ok {
				cpuTimeMs += ms
			}
		case strings.HasPrefix(line, "MEMORY_KB:"):
			if v, err := strconv.ParseInt(strings.TrimPrefix(line, "MEMORY_KB:"), 10, 64); err == nil {
				peakMemoryKb = v
			}
		}
	}
	return cpuTimeMs, peakMemoryKb
}

// parseGoTime parses bash time's "<min>m<sec>s" format, e.g. "0m1.230s".
func parseGoTime(value string) (int64, bool) {
	trimmed := strings.TrimSuffix(value, "s")
	parts := strings.SplitN(trimmed, "m", 2)
	if len(parts) != 2 {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, false
	}
	return int64((minutes*60 + seconds) * 1000), true
}

// inflate applies the time_limit_sec_effective = declared*k_t + c_t /
// memory_limit_mb_effective = declared*k_m + c_m formulas.
func inflate(kt, ct, km, cm, declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits {
	return types.EffectiveLimits{
		TimeLimitSec:  declaredTimeSec*kt + ct,
		MemoryLimitMb: declaredMemoryMb*km + cm,
	}
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// IsInterpretedCompileError classifies an interpreted-language compile
// check: exit code is authoritative; the substring fallback only matters
// when the runtime exits 0 despite a caught error.
func IsInterpretedCompileError(exitCode int, stderr string) bool {
	if exitCode != 0 {
		return true
	}
	return containsAny(stderr, CompileErrorTokens)
}
