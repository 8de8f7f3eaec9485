package lang

import (
	"fmt"

	"github.com/jjudge-oj/judge-worker/types"
)

// javaAdapter grounds its docker images and flags on the original judge's
// DOCKER_IMAGES["JAVA"] and compile/run command builders.
type javaAdapter struct{}

func (javaAdapter) Extension() string { return "java" }

func (javaAdapter) NeedsCompile() bool { return true }

func (javaAdapter) CompileCommand(workspaceMount string) []string {
	return []string{
		"javac",
		"-encoding", "UTF-8",
		"-d", workspaceMount,
		fmt.Sprintf("%s/Main.java", workspaceMount),
	}
}

func (javaAdapter) RunCommand(workspaceMount string, limits types.EffectiveLimits) []string {
	cmd := fmt.Sprintf(
		"java -Xmx%dm -XX:+UseSerialGC -Dfile.encoding=UTF-8 -cp %s Main",
		limits.MemoryLimitMb, workspaceMount,
	)
	return timingShimCommand(cmd)
}

func (javaAdapter) MemoryErrorTokens() []string {
	return []string{"java.lang.OutOfMemoryError", "OutOfMemoryError"}
}

func (javaAdapter) InflateLimits(declaredTimeSec, declaredMemoryMb int) types.EffectiveLimits {
	return inflate(2, 1, 2, 16, declaredTimeSec, declaredMemoryMb)
}
