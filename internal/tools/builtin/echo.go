// Package builtin provides the small set of tools the agentcore CLI
// registers by default so `agentcore run` has something to execute without
// a deployment-specific tool wiring.
package builtin

import "context"

// Echo is a tools.Tool that returns its "text" parameter unchanged.
// It exists so example workflows and tests have a zero-configuration tool
// to reference.
type Echo struct{}

// Name implements tools.Tool.
func (Echo) Name() string { return "echo" }

// DescribeOperations implements tools.Tool.
func (Echo) DescribeOperations() []string { return []string{"say"} }

// ValidateParams implements tools.Tool.
func (Echo) ValidateParams(op string, params map[string]any) (bool, string) {
	if op != "say" {
		return false, "echo only supports the say operation"
	}
	if _, ok := params["text"]; !ok {
		return false, "missing required parameter: text"
	}
	return true, ""
}

// Run implements tools.Tool.
func (Echo) Run(_ context.Context, _ string, params map[string]any) (any, error) {
	return params["text"], nil
}
