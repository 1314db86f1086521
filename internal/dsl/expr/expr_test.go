package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		`subtasks.includes('fetch')`: KindSubtaskCheck,
		`result.status == 'ok'`:      KindResultCheck,
		`context.retries > 3`:        KindContextCheck,
		`1 < 2`:                      KindComparison,
		`true and false`:             KindLogical,
		`true`:                       KindExpression,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Classify(raw), raw)
	}
}

func TestCheckStructureFlagsProblems(t *testing.T) {
	assert.NotEmpty(t, CheckStructure("(a == 1"))
	assert.NotEmpty(t, CheckStructure(`name == 'unterminated`))
	assert.NotEmpty(t, CheckStructure("true and and false"))
	assert.NotEmpty(t, CheckStructure("1abc == 2"))
	assert.NotEmpty(t, CheckStructure("foo-bar == 2"))
	assert.Empty(t, CheckStructure("result.status == 'ok' and context.retries < 3"))
}

func TestEvalComparisons(t *testing.T) {
	env := Env{}
	assert.True(t, Eval("1 < 2", env))
	assert.True(t, Eval("2 >= 2", env))
	assert.False(t, Eval("2 < 1", env))
	assert.True(t, Eval(`'a' == 'a'`, env))
	assert.True(t, Eval("1 == 1.0", env))
}

func TestEvalLogicalOperators(t *testing.T) {
	env := Env{}
	assert.True(t, Eval("true and not false", env))
	assert.True(t, Eval("false or true", env))
	assert.False(t, Eval("false and true", env))
	assert.True(t, Eval("(1 < 2) and (3 > 2)", env))
}

func TestEvalResolvesResultAndContextPaths(t *testing.T) {
	env := Env{
		Result: func(path string) (any, bool) {
			if path == "status" {
				return "ready", true
			}
			return nil, false
		},
		Context: func(path string) (any, bool) {
			if path == "retries" {
				return float64(2), true
			}
			return nil, false
		},
	}
	assert.True(t, Eval(`result.status == 'ready'`, env))
	assert.True(t, Eval("context.retries < 3", env))
	assert.False(t, Eval(`result.status == 'done'`, env))
}

func TestEvalSubtaskIncludes(t *testing.T) {
	env := Env{SubtaskExists: func(name string) bool { return name == "fetch" }}
	assert.True(t, Eval(`subtasks.includes('fetch')`, env))
	assert.False(t, Eval(`subtasks.includes('missing')`, env))
}

func TestEvalInvalidExpressionYieldsFalse(t *testing.T) {
	env := Env{}
	assert.False(t, Eval("((( unbalanced", env))
	assert.False(t, Eval("", env))
	assert.False(t, Eval("1 ==", env))
}
