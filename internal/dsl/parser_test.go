package dsl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/dsl"
)

func TestParse_SequenceOfTasks(t *testing.T) {
	doc := map[string]any{
		"sequence": []any{
			map[string]any{"task": "fetch"},
			map[string]any{"task": "summarize"},
		},
	}
	result := dsl.NewParser().Parse(doc)
	require.True(t, result.Success, result.Errors)
	require.NotNil(t, result.Root)
	assert.Equal(t, dsl.NodeSequence, result.Root.Type)
	assert.Len(t, result.Root.Children, 2)
	assert.Equal(t, "task_1", result.Root.Children[0].NodeID)
	assert.Equal(t, "task_2", result.Root.Children[1].NodeID)
	assert.Equal(t, 3, result.Metadata.NodeCount)
}

func TestParse_UnknownDiscriminator(t *testing.T) {
	result := dsl.NewParser().Parse(map[string]any{"bogus": true})
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func TestParse_ConditionWithThenElse(t *testing.T) {
	doc := map[string]any{
		"if":   "result.step1.ok == true",
		"then": []any{map[string]any{"task": "a"}},
		"else": []any{map[string]any{"task": "b"}},
	}
	result := dsl.NewParser().Parse(doc)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, dsl.NodeCondition, result.Root.Type)
	assert.Len(t, result.Root.Children, 2)
	assert.Equal(t, []string{"then", "else"}, result.Root.ChildTags)
}

func TestParse_LoopDefaults(t *testing.T) {
	doc := map[string]any{
		"loop": map[string]any{
			"condition": "context.done == false",
			"body":      []any{map[string]any{"task": "poll"}},
		},
	}
	result := dsl.NewParser().Parse(doc)
	require.True(t, result.Success, result.Errors)
	cfg := dsl.LoopConfigFrom(result.Root.Config)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.True(t, cfg.BreakOnError)
}

func TestParse_AssignsUniqueNodeIDs(t *testing.T) {
	doc := map[string]any{
		"parallel": []any{
			map[string]any{"task": "a"},
			map[string]any{"task": "b"},
			map[string]any{"task": "c"},
		},
	}
	result := dsl.NewParser().Parse(doc)
	require.True(t, result.Success, result.Errors)
	seen := map[string]bool{}
	var walk func(n *dsl.Node)
	walk = func(n *dsl.Node) {
		require.False(t, seen[n.NodeID], "duplicate node id %s", n.NodeID)
		seen[n.NodeID] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(result.Root)
}

func TestRoundTrip_ParseSerialize(t *testing.T) {
	doc := map[string]any{
		"sequence": []any{
			map[string]any{"task": "fetch", "parameters": map[string]any{"url": "x"}},
			map[string]any{
				"parallel": []any{
					map[string]any{"task": "a"},
					map[string]any{"task": "b"},
				},
			},
		},
	}
	first := dsl.NewParser().Parse(doc)
	require.True(t, first.Success, first.Errors)

	serialized := dsl.Serialize(first.Root)
	second := dsl.NewParser().Parse(serialized)
	require.True(t, second.Success, second.Errors)

	if diff := cmp.Diff(dsl.Serialize(first.Root), dsl.Serialize(second.Root)); diff != "" {
		t.Fatalf("round-trip mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestParse_InvalidConditionExpression(t *testing.T) {
	doc := map[string]any{"if": "(result.a == true"}
	result := dsl.NewParser().Parse(doc)
	assert.False(t, result.Success)
}
