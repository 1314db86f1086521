package dsl

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"goa.design/agentcore/internal/dsl/expr"
)

// ParseIssue is one parser-level error or warning.
type ParseIssue struct {
	Message string
	NodeID  string
}

// Metadata summarizes a successfully parsed tree.
type Metadata struct {
	NodeCount     int
	MaxDepth      int
	ParallelBlocks int
}

// ParseResult is the outcome of DSLParser.Parse (spec §4.C).
type ParseResult struct {
	Success  bool
	Root     *Node
	Errors   []ParseIssue
	Warnings []ParseIssue
	Metadata Metadata
}

// Parser builds a Node tree from a generic document tree. It is stateful
// only in its node id counters, which reset per top-level Parse call.
type Parser struct {
	counters map[string]int
}

// NewParser constructs a Parser.
func NewParser() *Parser { return &Parser{} }

// ParseJSON decodes raw as JSON and parses it into a Node tree.
func (p *Parser) ParseJSON(raw []byte) *ParseResult {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ParseResult{Errors: []ParseIssue{{Message: "invalid JSON: " + err.Error()}}}
	}
	return p.Parse(doc)
}

// ParseYAML decodes raw as YAML and parses it into a Node tree, sharing the
// same tree-builder as ParseJSON once decoded to a generic document.
func (p *Parser) ParseYAML(raw []byte) *ParseResult {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return &ParseResult{Errors: []ParseIssue{{Message: "invalid YAML: " + err.Error()}}}
	}
	return p.Parse(normalizeYAML(doc))
}

// normalizeYAML converts map[string]interface{} quirks from gopkg.in/yaml.v3
// (map[string]any is actually produced directly by yaml.v3 for string keys,
// unlike yaml.v2's map[interface{}]interface{}) into the same shape JSON
// produces, recursively.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// Parse builds a Node tree from a decoded document: either a single step
// object, or an array treated as an implicit top-level sequence.
func (p *Parser) Parse(doc any) *ParseResult {
	p.counters = map[string]int{}
	result := &ParseResult{}

	var root *Node
	var err error
	switch t := doc.(type) {
	case []any:
		root, err = p.parseStep(map[string]any{"sequence": t})
	case map[string]any:
		root, err = p.parseStep(t)
	default:
		err = fmt.Errorf("top-level document must be an object or array")
	}
	if err != nil {
		result.Errors = append(result.Errors, ParseIssue{Message: err.Error()})
		return result
	}

	result.Success = true
	result.Root = root
	result.Metadata = computeMetadata(root)
	return result
}

// parseStep dispatches on the fixed discriminator search order
// task | parallel | if | sequence | loop | wait (spec §4.C).
func (p *Parser) parseStep(step map[string]any) (*Node, error) {
	switch {
	case hasKey(step, "task"):
		return p.parseTask(step)
	case hasKey(step, "parallel"):
		return p.parseParallel(step)
	case hasKey(step, "if"):
		return p.parseCondition(step)
	case hasKey(step, "sequence"):
		return p.parseSequence(step)
	case hasKey(step, "loop"):
		return p.parseLoop(step)
	case hasKey(step, "wait"):
		return p.parseWait(step)
	default:
		return nil, fmt.Errorf("unrecognized step discriminator: no task|parallel|if|sequence|loop|wait key found")
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func (p *Parser) nextID(prefix string) string {
	p.counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, p.counters[prefix])
}

func (p *Parser) parseTask(step map[string]any) (*Node, error) {
	cfg := map[string]any{"task": step["task"]}
	for _, k := range []string{"tools", "parameters", "timeout", "retry_count", "conditions", "depends_on"} {
		if v, ok := step[k]; ok {
			cfg[k] = v
		}
	}
	node := &Node{NodeID: p.nextID("task"), Type: NodeTask, Config: cfg}
	if conds, ok := step["conditions"].([]any); ok {
		for _, c := range conds {
			if s, ok := c.(string); ok {
				for _, issue := range expr.CheckStructure(s) {
					return nil, fmt.Errorf("invalid condition expression %q: %s", s, issue.Message)
				}
			}
		}
	}
	return node, node.Validate()
}

func (p *Parser) parseSteps(raw any) ([]*Node, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of steps")
	}
	nodes := make([]*Node, 0, len(arr))
	for _, s := range arr {
		stepMap, ok := s.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step must be an object")
		}
		n, err := p.parseStep(stepMap)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (p *Parser) parseSequence(step map[string]any) (*Node, error) {
	children, err := p.parseSteps(step["sequence"])
	if err != nil {
		return nil, err
	}
	node := &Node{NodeID: p.nextID("sequence"), Type: NodeSequence, Config: map[string]any{}, Children: children}
	setParent(node)
	return node, nil
}

func (p *Parser) parseParallel(step map[string]any) (*Node, error) {
	children, err := p.parseSteps(step["parallel"])
	if err != nil {
		return nil, err
	}
	cfg := map[string]any{}
	for _, k := range []string{"max_concurrency", "wait_for_all", "fail_fast"} {
		if v, ok := step[k]; ok {
			cfg[k] = v
		}
	}
	node := &Node{NodeID: p.nextID("parallel"), Type: NodeParallel, Config: cfg, Children: children}
	setParent(node)
	return node, node.Validate()
}

func (p *Parser) parseCondition(step map[string]any) (*Node, error) {
	exprStr, _ := step["if"].(string)
	for _, issue := range expr.CheckStructure(exprStr) {
		return nil, fmt.Errorf("invalid condition expression %q: %s", exprStr, issue.Message)
	}
	node := &Node{
		NodeID: p.nextID("if"),
		Type:   NodeCondition,
		Config: map[string]any{"expression": exprStr},
	}
	if thenSteps, ok := step["then"]; ok {
		children, err := p.parseSteps(thenSteps)
		if err != nil {
			return nil, err
		}
		thenSeq := &Node{NodeID: p.nextID("sequence"), Type: NodeSequence, Config: map[string]any{}, Children: children}
		setParent(thenSeq)
		node.Children = append(node.Children, thenSeq)
		node.ChildTags = append(node.ChildTags, "then")
	}
	if elseSteps, ok := step["else"]; ok {
		children, err := p.parseSteps(elseSteps)
		if err != nil {
			return nil, err
		}
		elseSeq := &Node{NodeID: p.nextID("sequence"), Type: NodeSequence, Config: map[string]any{}, Children: children}
		setParent(elseSeq)
		node.Children = append(node.Children, elseSeq)
		node.ChildTags = append(node.ChildTags, "else")
	}
	setParent(node)
	return node, node.Validate()
}

func (p *Parser) parseLoop(step map[string]any) (*Node, error) {
	loopSpec, ok := step["loop"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("loop step requires a loop object")
	}
	condStr, _ := loopSpec["condition"].(string)
	for _, issue := range expr.CheckStructure(condStr) {
		return nil, fmt.Errorf("invalid loop condition %q: %s", condStr, issue.Message)
	}
	body, err := p.parseSteps(loopSpec["body"])
	if err != nil {
		return nil, err
	}
	cfg := map[string]any{"condition": condStr}
	for _, k := range []string{"max_iterations", "break_on_error"} {
		if v, ok := loopSpec[k]; ok {
			cfg[k] = v
		}
	}
	node := &Node{NodeID: p.nextID("loop"), Type: NodeLoop, Config: cfg, Children: body}
	setParent(node)
	return node, node.Validate()
}

func (p *Parser) parseWait(step map[string]any) (*Node, error) {
	waitSpec, ok := step["wait"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wait step requires a wait object")
	}
	condStr, _ := waitSpec["condition"].(string)
	for _, issue := range expr.CheckStructure(condStr) {
		return nil, fmt.Errorf("invalid wait condition %q: %s", condStr, issue.Message)
	}
	cfg := map[string]any{"condition": condStr}
	for _, k := range []string{"timeout", "poll_interval"} {
		if v, ok := waitSpec[k]; ok {
			cfg[k] = v
		}
	}
	node := &Node{NodeID: p.nextID("wait"), Type: NodeWait, Config: cfg}
	return node, nil
}

func setParent(n *Node) {
	for _, c := range n.Children {
		c.Parent = n.NodeID
	}
}

func computeMetadata(root *Node) Metadata {
	var m Metadata
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		m.NodeCount++
		if depth > m.MaxDepth {
			m.MaxDepth = depth
		}
		if n.Type == NodeParallel {
			m.ParallelBlocks++
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
	return m
}
