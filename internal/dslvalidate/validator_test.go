package dslvalidate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/dsl"
	"goa.design/agentcore/internal/dslvalidate"
)

func parse(t *testing.T, doc any) *dsl.Node {
	t.Helper()
	result := dsl.NewParser().Parse(doc)
	require.True(t, result.Success, result.Errors)
	return result.Root
}

func TestValidate_DependencyCycle(t *testing.T) {
	doc := map[string]any{
		"sequence": []any{
			map[string]any{"task": "A"},
			map[string]any{"task": "B", "depends_on": "A"},
			map[string]any{"task": "A", "depends_on": "B"},
		},
	}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	assert.False(t, result.IsValid)
	found := false
	for _, issue := range result.Issues {
		if issue.Severity == dslvalidate.SeverityError && strings.Contains(issue.Message, "cycle") {
			found = true
		}
	}
	assert.True(t, found, "expected a cycle error, got %+v", result.Issues)
}

func TestValidate_ExecutionOrderTopologicallySound(t *testing.T) {
	doc := map[string]any{
		"sequence": []any{
			map[string]any{"task": "fetch"},
			map[string]any{"task": "summarize"},
		},
	}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	require.True(t, result.IsValid, result.Issues)
	require.Len(t, result.ExecutionOrder, 3)
	position := map[string]int{}
	for i, id := range result.ExecutionOrder {
		position[id] = i
	}
	assert.Less(t, position["task_1"], position["task_2"])
}

func TestValidate_UnknownToolIsError(t *testing.T) {
	doc := map[string]any{"task": "fetch", "tools": []any{"http.get"}}
	root := parse(t, doc)

	result := dslvalidate.New(dslvalidate.WithCatalog(dslvalidate.Catalog{
		Tools: func(name string) bool { return name == "http.post" },
	})).Validate(root)

	assert.False(t, result.IsValid)
}

func TestValidate_SensitiveToolWarns(t *testing.T) {
	doc := map[string]any{"task": "cleanup", "tools": []any{"file.delete"}}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	require.True(t, result.IsValid)
	var sawWarning bool
	for _, issue := range result.Issues {
		if issue.Severity == dslvalidate.SeverityWarning {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestValidate_DurationEstimate_ParallelTakesMax(t *testing.T) {
	doc := map[string]any{
		"parallel": []any{
			map[string]any{"task": "a", "timeout": 5.0},
			map[string]any{"task": "b", "timeout": 20.0},
		},
	}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	assert.Equal(t, 20.0, result.EstimatedDuration)
}

func TestValidate_DurationEstimate_LoopCapsAtTenIterations(t *testing.T) {
	doc := map[string]any{
		"loop": map[string]any{
			"condition":      "context.done == false",
			"body":           []any{map[string]any{"task": "poll", "timeout": 2.0}},
			"max_iterations": 1000.0,
		},
	}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	assert.Equal(t, 20.0, result.EstimatedDuration)
}

func TestValidate_MissingResultReference(t *testing.T) {
	doc := map[string]any{
		"task":       "summarize",
		"parameters": map[string]any{"input": "${result.nonexistent.text}"},
	}
	root := parse(t, doc)

	result := dslvalidate.New().Validate(root)

	assert.False(t, result.IsValid)
}
