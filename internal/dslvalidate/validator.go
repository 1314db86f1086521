// Package dslvalidate implements DSLValidator (spec §4.D): static analysis
// of a parsed dsl.Node tree prior to execution. It checks structural
// invariants the parser does not (duplicate ids across the whole tree,
// dependency cycles, missing references, unknown tools/tasks), computes a
// topological execution order, estimates total duration, and flags a small
// set of security-sensitive patterns.
package dslvalidate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"goa.design/agentcore/internal/dsl"
)

// Severity classifies a validation Issue.
type Severity string

// Issue severities.
const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue is one validator finding.
type Issue struct {
	Severity Severity
	Message  string
	NodeID   string
}

// Catalog reports which task names and tool names are known to the runtime,
// so the validator can flag references to undefined work ahead of
// execution. A nil Catalog disables catalog checks.
type Catalog struct {
	Tasks func(name string) bool
	Tools func(name string) bool
}

// ValidationResult is the outcome of Validate (spec §4.D).
type ValidationResult struct {
	IsValid           bool
	Issues            []Issue
	DependencyGraph   map[string][]string
	ExecutionOrder    []string
	EstimatedDuration float64
}

// Validator runs the checks in spec §4.D against a parsed tree.
type Validator struct {
	maxDepthWarn int
	catalog      *Catalog
}

// Option configures a Validator.
type Option func(*Validator)

// WithCatalog enables task/tool catalog checks.
func WithCatalog(c Catalog) Option {
	return func(v *Validator) { v.catalog = &c }
}

// WithMaxDepthWarn overrides the depth at which the validator emits a
// WARNING (default 20, spec §4.D).
func WithMaxDepthWarn(n int) Option {
	return func(v *Validator) { v.maxDepthWarn = n }
}

// New constructs a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{maxDepthWarn: 20}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var resultRefPattern = regexp.MustCompile(`\$\{result\.([A-Za-z0-9_]+)(\.[A-Za-z0-9_.]+)?\}`)
var templatePattern = regexp.MustCompile(`\$\{[^}]+\}`)

var dangerousToolPattern = regexp.MustCompile(`(?i)(file\.delete|system\.execute|network\.request)`)

// Validate runs the full spec §4.D check suite against root.
func (v *Validator) Validate(root *dsl.Node) *ValidationResult {
	result := &ValidationResult{DependencyGraph: map[string][]string{}}
	if root == nil {
		result.Issues = append(result.Issues, Issue{Severity: SeverityError, Message: "empty tree"})
		return result
	}

	nodesByID := map[string]*dsl.Node{}
	v.checkDuplicateIDs(root, nodesByID, result)
	v.checkDepth(root, result)

	nameGraph := v.buildDependencyGraphs(root, nodesByID, result)
	v.checkMissingDependencies(nodesByID, result)
	v.checkCycles(result.DependencyGraph, result)
	v.checkNameCycles(nameGraph, result)
	v.checkCatalogs(nodesByID, result)
	v.checkReachability(root, nodesByID, result)
	v.checkSecurity(nodesByID, result)

	order, ok := topoSort(result.DependencyGraph)
	if !ok {
		result.Issues = append(result.Issues, Issue{Severity: SeverityError, Message: "execution order undefined: dependency graph has a cycle"})
	} else {
		result.ExecutionOrder = order
	}
	result.EstimatedDuration = estimateDuration(root)

	result.IsValid = !hasError(result.Issues)
	return result
}

func hasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// checkDuplicateIDs walks the tree collecting node ids, flagging any id that
// appears more than once (spec §8 invariant; the parser already guarantees
// this for a single parse, but a hand-assembled or merged tree may not).
func (v *Validator) checkDuplicateIDs(root *dsl.Node, nodesByID map[string]*dsl.Node, result *ValidationResult) {
	var walk func(n *dsl.Node)
	walk = func(n *dsl.Node) {
		if existing, ok := nodesByID[n.NodeID]; ok && existing != n {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate node id %q", n.NodeID),
				NodeID:   n.NodeID,
			})
		} else {
			nodesByID[n.NodeID] = n
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}

func (v *Validator) checkDepth(root *dsl.Node, result *ValidationResult) {
	var walk func(n *dsl.Node, depth int)
	walk = func(n *dsl.Node, depth int) {
		if depth > v.maxDepthWarn {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("tree depth %d exceeds recommended maximum %d", depth, v.maxDepthWarn),
				NodeID:   n.NodeID,
			})
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
}

// buildDependencyGraphs populates result.DependencyGraph (node-id level,
// used for execution ordering and duration estimation) from three sources:
// sequential siblings, ${result.<id>.<path>} template references, and
// explicit depends_on lists. depends_on names sibling *task names*, not
// node ids; it additionally feeds a name-level graph so that two distinct
// nodes sharing a task name can still form a detectable cycle (a task name
// reused after a later task depends back on it).
func (v *Validator) buildDependencyGraphs(root *dsl.Node, nodesByID map[string]*dsl.Node, result *ValidationResult) map[string][]string {
	nameGraph := map[string][]string{}
	taskNameToID := map[string][]string{}

	for id, n := range nodesByID {
		result.DependencyGraph[id] = result.DependencyGraph[id]
		if n.Type == dsl.NodeTask {
			cfg := dsl.TaskConfigFrom(n.Config)
			taskNameToID[cfg.Task] = append(taskNameToID[cfg.Task], id)
		}
	}

	var walk func(n *dsl.Node)
	walk = func(n *dsl.Node) {
		if n.Type == dsl.NodeSequence {
			for i := 1; i < len(n.Children); i++ {
				prev, cur := n.Children[i-1], n.Children[i]
				result.DependencyGraph[cur.NodeID] = appendUnique(result.DependencyGraph[cur.NodeID], prev.NodeID)
			}
		}
		if n.Type == dsl.NodeTask {
			cfg := dsl.TaskConfigFrom(n.Config)
			for _, ref := range extractResultRefs(cfg.Parameters) {
				if _, ok := nodesByID[ref]; ok {
					result.DependencyGraph[n.NodeID] = appendUnique(result.DependencyGraph[n.NodeID], ref)
				} else {
					result.Issues = append(result.Issues, Issue{
						Severity: SeverityError,
						Message:  fmt.Sprintf("references unknown node id %q", ref),
						NodeID:   n.NodeID,
					})
				}
			}
			for _, dep := range cfg.DependsOn {
				nameGraph[cfg.Task] = appendUnique(nameGraph[cfg.Task], dep)
				if ids, ok := taskNameToID[dep]; ok {
					result.DependencyGraph[n.NodeID] = appendUnique(result.DependencyGraph[n.NodeID], ids...)
				} else {
					result.Issues = append(result.Issues, Issue{
						Severity: SeverityError,
						Message:  fmt.Sprintf("depends_on references unknown task %q", dep),
						NodeID:   n.NodeID,
					})
				}
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return nameGraph
}

func extractResultRefs(params map[string]any) []string {
	var refs []string
	for _, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, m := range resultRefPattern.FindAllStringSubmatch(s, -1) {
			refs = append(refs, m[1])
		}
	}
	return refs
}

func appendUnique(list []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// checkMissingDependencies flags dependency edges that point at node ids
// absent from the tree. This is defensive: Validate builds the graph itself
// through buildDependencyGraphs, which only adds edges to ids in nodesByID,
// so for graphs built there the check reports nothing.
func (v *Validator) checkMissingDependencies(nodesByID map[string]*dsl.Node, result *ValidationResult) {
	for id, deps := range result.DependencyGraph {
		for _, dep := range deps {
			if _, ok := nodesByID[dep]; !ok {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityError,
					Message:  fmt.Sprintf("node %q depends on missing node %q", id, dep),
					NodeID:   id,
				})
			}
		}
	}
}

// checkCycles runs a DFS cycle check over the node-id dependency graph.
func (v *Validator) checkCycles(graph map[string][]string, result *ValidationResult) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cyclePath []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		cyclePath = append(cyclePath, id)
		for _, dep := range graph[id] {
			switch color[dep] {
			case gray:
				cyclePath = append(cyclePath, dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		cyclePath = cyclePath[:len(cyclePath)-1]
		color[id] = black
		return false
	}

	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityError,
					Message:  "dependency cycle detected: " + strings.Join(cyclePath, " -> "),
				})
				return
			}
		}
	}
}

// checkNameCycles detects cycles in the depends_on task-name graph, which
// can exist even when the node-id graph is acyclic because a task name can
// be reused by more than one node (spec §8 cycle scenario: task "A" used
// twice, with the second "A" depending on "B" which depends on the first
// "A").
func (v *Validator) checkNameCycles(nameGraph map[string][]string, result *ValidationResult) {
	color := map[string]int{}
	var path []string
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = 1
		path = append(path, name)
		for _, dep := range nameGraph[name] {
			if color[dep] == 1 {
				path = append(path, dep)
				return true
			}
			if color[dep] == 0 && visit(dep) {
				return true
			}
		}
		path = path[:len(path)-1]
		color[name] = 2
		return false
	}

	names := make([]string, 0, len(nameGraph))
	for n := range nameGraph {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == 0 {
			if visit(name) {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityError,
					Message:  "dependency cycle detected among task names: " + strings.Join(path, " -> "),
				})
				return
			}
		}
	}
}

func (v *Validator) checkCatalogs(nodesByID map[string]*dsl.Node, result *ValidationResult) {
	if v.catalog == nil {
		return
	}
	ids := sortedKeys(nodesByID)
	for _, id := range ids {
		n := nodesByID[id]
		if n.Type != dsl.NodeTask {
			continue
		}
		cfg := dsl.TaskConfigFrom(n.Config)
		if v.catalog.Tasks != nil && cfg.Task != "" && !v.catalog.Tasks(cfg.Task) {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("unknown task %q", cfg.Task),
				NodeID:   id,
			})
		}
		if v.catalog.Tools != nil {
			for _, tool := range cfg.Tools {
				if !v.catalog.Tools(tool) {
					result.Issues = append(result.Issues, Issue{
						Severity: SeverityError,
						Message:  fmt.Sprintf("unknown tool %q", tool),
						NodeID:   id,
					})
				}
			}
		}
	}
}

// checkReachability verifies every node in the tree is reachable from root
// by structural containment. It is defensive: Validate collects nodesByID
// by walking the same root, so every node it lists is reachable and the
// check reports nothing for trees passed to Validate.
func (v *Validator) checkReachability(root *dsl.Node, nodesByID map[string]*dsl.Node, result *ValidationResult) {
	reachable := map[string]bool{}
	var walk func(n *dsl.Node)
	walk = func(n *dsl.Node) {
		reachable[n.NodeID] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	for _, id := range sortedKeys(nodesByID) {
		if !reachable[id] {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q is unreachable from root", id),
				NodeID:   id,
			})
		}
	}
}

// checkSecurity flags the two heuristics from spec §4.D: tool names that
// touch the filesystem, process, or network surface, and parameter values
// carrying unresolved template references (informational only, since
// resolution happens at execution time).
func (v *Validator) checkSecurity(nodesByID map[string]*dsl.Node, result *ValidationResult) {
	for _, id := range sortedKeys(nodesByID) {
		n := nodesByID[id]
		if n.Type != dsl.NodeTask {
			continue
		}
		cfg := dsl.TaskConfigFrom(n.Config)
		for _, tool := range cfg.Tools {
			if dangerousToolPattern.MatchString(tool) {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("tool %q performs a sensitive operation", tool),
					NodeID:   id,
				})
			}
		}
		for key, val := range cfg.Parameters {
			if s, ok := val.(string); ok && templatePattern.MatchString(s) {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("parameter %q is resolved at execution time", key),
					NodeID:   id,
				})
			}
		}
	}
}

func sortedKeys(m map[string]*dsl.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// topoSort runs Kahn's algorithm over graph (node id -> its dependencies).
// The returned order lists dependencies before dependents. ok is false if
// graph contains a cycle.
func topoSort(graph map[string][]string) ([]string, bool) {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for id := range graph {
		indegree[id] = 0
	}
	for id, deps := range graph {
		indegree[id] += len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) != len(indegree) {
		return nil, false
	}
	return order, true
}

// estimateDuration estimates total wall-clock time for root (spec §4.D):
// SEQUENCE sums its children, PARALLEL takes the max, CONDITION averages
// its branches, LOOP multiplies its body estimate by
// min(max_iterations, 10), WAIT contributes its timeout, and TASK
// contributes its own timeout (default 30s when unset).
func estimateDuration(n *dsl.Node) float64 {
	switch n.Type {
	case dsl.NodeTask:
		cfg := dsl.TaskConfigFrom(n.Config)
		if cfg.Timeout > 0 {
			return cfg.Timeout
		}
		return 30
	case dsl.NodeSequence:
		var total float64
		for _, c := range n.Children {
			total += estimateDuration(c)
		}
		return total
	case dsl.NodeParallel:
		var max float64
		for _, c := range n.Children {
			if d := estimateDuration(c); d > max {
				max = d
			}
		}
		return max
	case dsl.NodeCondition:
		if len(n.Children) == 0 {
			return 0
		}
		var total float64
		for _, c := range n.Children {
			total += estimateDuration(c)
		}
		return total / float64(len(n.Children))
	case dsl.NodeLoop:
		cfg := dsl.LoopConfigFrom(n.Config)
		iterations := cfg.MaxIterations
		if iterations > 10 {
			iterations = 10
		}
		var body float64
		for _, c := range n.Children {
			body += estimateDuration(c)
		}
		return body * float64(iterations)
	case dsl.NodeWait:
		cfg := dsl.WaitConfigFrom(n.Config)
		return cfg.Timeout
	default:
		return 0
	}
}
