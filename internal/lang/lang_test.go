package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjudge-oj/judge-worker/types"
)

func TestLookup(t *testing.T) {
	for _, l := range []types.Language{types.LanguageJava, types.LanguagePython, types.LanguageKotlin, types.LanguageSwift} {
		a, ok := Lookup(l)
		require.Truef(t, ok, "expected %s to be registered", l)
		assert.NotEmpty(t, a.Extension())
	}

	_, ok := Lookup(types.Language("COBOL"))
	assert.False(t, ok)
}

func TestJavaInflateLimits(t *testing.T) {
	a, _ := Lookup(types.LanguageJava)
	limits := a.InflateLimits(2, 256)
	assert.Equal(t, 5, limits.TimeLimitSec)
	assert.Equal(t, 528, limits.MemoryLimitMb)
}

func TestPythonIsInterpretedCompileError(t *testing.T) {
	assert.True(t, IsInterpretedCompileError(1, ""))
	assert.True(t, IsInterpretedCompileError(0, "  File \"Main.py\", line 2\nSyntaxError: invalid syntax"))
	assert.False(t, IsInterpretedCompileError(0, ""))
}

func TestParseTimingShim(t *testing.T) {
	stderr := "real 0m1.500s\nuser 0m1.230s\nsys 0m0.100s\nMEMORY_KB:20480\n"
	cpu, mem := ParseTimingShim(stderr)
	assert.Equal(t, int64(1330), cpu)
	assert.Equal(t, int64(20480), mem)
}

func TestParseTimingShimMalformed(t *testing.T) {
	cpu, mem := ParseTimingShim("garbage\n")
	assert.Equal(t, int64(0), cpu)
	assert.Equal(t, int64(0), mem)
}

func TestSwiftHasNoMemoryErrorTokens(t *testing.T) {
	a, _ := Lookup(types.LanguageSwift)
	assert.Empty(t, a.MemoryErrorTokens())
}

func TestRunCommandWrapsTimingShim(t *testing.T) {
	a, _ := Lookup(types.LanguagePython)
	cmd := a.RunCommand("/workspace", types.EffectiveLimits{TimeLimitSec: 5, MemoryLimitMb: 256})
	require.Len(t, cmd, 3)
	assert.Equal(t, "bash", cmd[0])
	assert.Equal(t, "-c", cmd[1])
	assert.Contains(t, cmd[2], "python3 -I -S -W ignore /workspace/Main.py")
	assert.Contains(t, cmd[2], "MEMORY_KB")
}
