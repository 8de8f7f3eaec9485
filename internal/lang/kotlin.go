package lang

import (
	"fmt"

	"github.com/jjudge-oj/judge-worker/types"
)

// kotlinAdapter is modeled as JVM-hosted like javaAdapter, plus the
// kotlinc-emitted stdlib/coroutines runtime the compiled jar bundles via
// -include-runtime.
type kotlinAdapter struct{}

func (kotlinAdapter) Extension() string { return "kt" }

func (kotlinAdapter) NeedsCompile() bool { return true }

func (kotlinAdapter) CompileCommand(workspaceMount string) []string {
	return []string{
		"kotlinc",
		fmt.Sprintf("%s/Main.kt", workspaceMount),
		"-include-runtime",
		"-d", fmt.Sprintf("%s/Main.jar", workspaceMount),
	}
}

func (kotlinAdapter) RunCommand(workspaceMount string, limits types.EffectiveLimits) []string {
	cmd := fmt.Sprintf(
		"java -Xmx%dm -XX:+UseSerialGC -jar %s/Main.jar",
		limits.MemoryLimitMb, workspaceMount,
	)
	return timingShimCommand(cmd)
}

func (kotlinAdapter) MemoryErrorTokens() []string {
	return []string{"java.lang.OutOfMemoryError", "OutOfMemoryError"}
}

func (kotlinAdapter) InflateLimits(declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits {
	return inflate(2, 2, 2, 32, declaredTimeSec, declaredMemoryMb)
}
