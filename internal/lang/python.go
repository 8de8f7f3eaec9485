package lang

import (
	"fmt"

	"github.com/jjudge-oj/judge-worker/types"
)

// pythonAdapter's "compile" step is a byte-compile dry run: CPython has no
// separate compile phase, but py_compile.compile(doraise=True) surfaces a
// SyntaxError before any test case is ever run, matching the original
// judge's compile_python behavior.
type pythonAdapter struct{}

func (pythonAdapter) Extension() string { return "py" }

func (pythonAdapter) NeedsCompile() bool { return true }

func (pythonAdapter) CompileCommand(workspaceMount string) []string {
	script := fmt.Sprintf(
		"import py_compile; py_compile.compile('%s/Main.py', doraise=True)",
		workspaceMount,
	)
	return []string{"python3", "-c", script}
}

func (pythonAdapter) RunCommand(workspaceMount string, limits types.EffectiveLimits) []string {
	cmd := fmt.Sprintf("python3 -I -S -W ignore %s/Main.py", workspaceMount)
	return timingShimCommand(cmd)
}

func (pythonAdapter) MemoryErrorTokens() []string {
	return []string{"MemoryError"}
}

func (pythonAdapter) InflateLimits(declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits {
	return inflate(3, 2, 2, 16, declaredTimeSec, declaredMemoryMb)
}
