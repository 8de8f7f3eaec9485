package lang

import (
	"fmt"

	"github.com/jjudge-oj/judge-worker/types"
)

// swiftAdapter is the second extension language. Swift compiles ahead of
// time to a native binary, so its run step has no runtime/JIT warmup and
// no catchable out-of-memory exception — an OOM kill surfaces only through
// the sandbox's exit code (137), not a stderr substring.
type swiftAdapter struct{}

func (swiftAdapter) Extension() string { return "swift" }

func (swiftAdapter) NeedsCompile() bool { return true }

func (swiftAdapter) CompileCommand(workspaceMount string) []string {
	return []string{
		"swiftc",
		"-O",
		fmt.Sprintf("%s/Main.swift", workspaceMount),
		"-o", fmt.Sprintf("%s/Main", workspaceMount),
	}
}

func (swiftAdapter) RunCommand(workspaceMount string, limits types.EffectiveLimits) []string {
	cmd := fmt.Sprintf("%s/Main", workspaceMount)
	return timingShimCommand(cmd)
}

func (swiftAdapter) MemoryErrorTokens() []string {
	return nil
}

func (swiftAdapter) InflateLimits(declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits {
	return inflate(1, 1, 1, 8, declaredTimeSec, declaredMemoryMb)
}
