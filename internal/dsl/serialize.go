package dsl

// Serialize renders a Node tree back into the wire-format document shape
// recognized by Parse, so that Parse(Serialize(tree)) reproduces an
// equivalent tree (spec §8 round-trip law). Serialize intentionally omits
// NodeID and Parent — both are parser-assigned and are not part of the
// wire format — so round-tripping compares Type/Config/Children shape.
func Serialize(n *Node) map[string]any {
	if n == nil {
		return nil
	}
	switch n.Type {
	case NodeTask:
		out := map[string]any{"task": n.Config["task"]}
		for _, k := range []string{"tools", "parameters", "timeout", "retry_count", "conditions", "depends_on"} {
			if v, ok := n.Config[k]; ok {
				out[k] = v
			}
		}
		return out
	case NodeSequence:
		return map[string]any{"sequence": serializeChildren(n.Children)}
	case NodeParallel:
		out := map[string]any{"parallel": serializeChildren(n.Children)}
		for _, k := range []string{"max_concurrency", "wait_for_all", "fail_fast"} {
			if v, ok := n.Config[k]; ok {
				out[k] = v
			}
		}
		return out
	case NodeCondition:
		out := map[string]any{"if": n.Config["expression"]}
		for i, tag := range n.ChildTags {
			if i < len(n.Children) {
				out[tag] = serializeChildren(n.Children[i].Children)
			}
		}
		return out
	case NodeLoop:
		loop := map[string]any{"condition": n.Config["condition"], "body": serializeChildren(n.Children)}
		for _, k := range []string{"max_iterations", "break_on_error"} {
			if v, ok := n.Config[k]; ok {
				loop[k] = v
			}
		}
		return map[string]any{"loop": loop}
	case NodeWait:
		wait := map[string]any{"condition": n.Config["condition"]}
		for _, k := range []string{"timeout", "poll_interval"} {
			if v, ok := n.Config[k]; ok {
				wait[k] = v
			}
		}
		return map[string]any{"wait": wait}
	default:
		return nil
	}
}

func serializeChildren(children []*Node) []any {
	out := make([]any, 0, len(children))
	for _, c := range children {
		out = append(out, Serialize(c))
	}
	return out
}
