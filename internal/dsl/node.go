// Package dsl implements the DSL node tree and parser (spec §4.C): parsing
// declarative workflow definitions into a typed node tree.
package dsl

// NodeType tags the variant a DSLNode represents.
type NodeType string

// Node type discriminators.
const (
	NodeTask      NodeType = "TASK"
	NodeSequence  NodeType = "SEQUENCE"
	NodeParallel  NodeType = "PARALLEL"
	NodeCondition NodeType = "CONDITION"
	NodeLoop      NodeType = "LOOP"
	NodeWait      NodeType = "WAIT"
)

// Node is a tagged-variant tree node. Parent pointers are weak backrefs: the
// tree is owned by each node's Children slice, never by Parent, so the
// structure stays acyclic for garbage collection and serialization (spec §9
// "Cyclic relationships").
type Node struct {
	NodeID   string
	Type     NodeType
	Config   map[string]any
	Children []*Node
	Parent   string // parent NodeID, empty at the root
	Metadata map[string]any

	// ChildTags labels each entry in Children for variants where position
	// alone is ambiguous, e.g. CONDITION's "then"/"else" children.
	ChildTags []string
}

// TaskConfig is the typed view over a TASK node's Config.
type TaskConfig struct {
	Task       string
	Tools      []string
	Parameters map[string]any
	Timeout    float64
	RetryCount int
	Conditions []string
	// DependsOn names zero or more sibling task names (not node ids) this
	// task must follow. It is an additive field recognized by DSLValidator
	// for explicit dependency wiring beyond the default sequential-sibling
	// and ${result...} reference rules.
	DependsOn []string
}

// ParallelConfig is the typed view over a PARALLEL node's Config.
type ParallelConfig struct {
	MaxConcurrency int
	WaitForAll     bool
	FailFast       bool
}

// LoopConfig is the typed view over a LOOP node's Config.
type LoopConfig struct {
	Condition     string
	MaxIterations int
	BreakOnError  bool
}

// WaitConfig is the typed view over a WAIT node's Config.
type WaitConfig struct {
	Condition    string
	Timeout      float64
	PollInterval float64
}

// ConditionConfig is the typed view over a CONDITION node's Config.
type ConditionConfig struct {
	Expression string
}

// Validate checks the structural invariants from spec §3 for this node
// alone (tree-wide invariants like node_id uniqueness are checked by
// DSLValidator).
func (n *Node) Validate() error {
	switch n.Type {
	case NodeCondition:
		if len(n.Children) > 2 {
			return &StructuralError{NodeID: n.NodeID, Reason: "condition node has more than two children"}
		}
	case NodeLoop:
		if len(n.Children) == 0 {
			return &StructuralError{NodeID: n.NodeID, Reason: "loop node has an empty body"}
		}
		cfg := LoopConfigFrom(n.Config)
		if cfg.MaxIterations <= 0 {
			return &StructuralError{NodeID: n.NodeID, Reason: "loop node max_iterations must be > 0"}
		}
	case NodeParallel:
		if len(n.Children) == 0 {
			return &StructuralError{NodeID: n.NodeID, Reason: "parallel node has no children"}
		}
		cfg := ParallelConfigFrom(n.Config, len(n.Children))
		if cfg.MaxConcurrency > len(n.Children) {
			return &StructuralError{NodeID: n.NodeID, Reason: "parallel node max_concurrency exceeds child count"}
		}
	}
	return nil
}

// StructuralError reports a DSLNode invariant violation.
type StructuralError struct {
	NodeID string
	Reason string
}

func (e *StructuralError) Error() string { return "dsl node " + e.NodeID + ": " + e.Reason }

// TaskConfigFrom extracts a TaskConfig from a raw Config map.
func TaskConfigFrom(cfg map[string]any) TaskConfig {
	var out TaskConfig
	out.Task, _ = cfg["task"].(string)
	out.Tools = stringSlice(cfg["tools"])
	if params, ok := cfg["parameters"].(map[string]any); ok {
		out.Parameters = params
	}
	out.Timeout = float64From(cfg["timeout"])
	out.RetryCount = int(float64From(cfg["retry_count"]))
	out.Conditions = stringSlice(cfg["conditions"])
	out.DependsOn = dependsOnSlice(cfg["depends_on"])
	return out
}

// dependsOnSlice accepts depends_on as either a single task name or an array
// of task names.
func dependsOnSlice(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		return stringSlice(t)
	default:
		return nil
	}
}

// ParallelConfigFrom extracts a ParallelConfig, defaulting MaxConcurrency to
// childCount and WaitForAll to true per spec §4.C.
func ParallelConfigFrom(cfg map[string]any, childCount int) ParallelConfig {
	out := ParallelConfig{MaxConcurrency: childCount, WaitForAll: true}
	if v, ok := cfg["max_concurrency"]; ok {
		out.MaxConcurrency = int(float64From(v))
	}
	if v, ok := cfg["wait_for_all"]; ok {
		out.WaitForAll, _ = v.(bool)
	}
	if v, ok := cfg["fail_fast"]; ok {
		out.FailFast, _ = v.(bool)
	}
	return out
}

// LoopConfigFrom extracts a LoopConfig, defaulting MaxIterations to 100 and
// BreakOnError to true per spec §4.C.
func LoopConfigFrom(cfg map[string]any) LoopConfig {
	out := LoopConfig{MaxIterations: 100, BreakOnError: true}
	out.Condition, _ = cfg["condition"].(string)
	if v, ok := cfg["max_iterations"]; ok {
		out.MaxIterations = int(float64From(v))
	}
	if v, ok := cfg["break_on_error"]; ok {
		out.BreakOnError, _ = v.(bool)
	}
	return out
}

// WaitConfigFrom extracts a WaitConfig, defaulting Timeout to 30 and
// PollInterval to 1 per spec §4.C.
func WaitConfigFrom(cfg map[string]any) WaitConfig {
	out := WaitConfig{Timeout: 30, PollInterval: 1}
	out.Condition, _ = cfg["condition"].(string)
	if v, ok := cfg["timeout"]; ok {
		out.Timeout = float64From(v)
	}
	if v, ok := cfg["poll_interval"]; ok {
		out.PollInterval = float64From(v)
	}
	return out
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func float64From(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}
