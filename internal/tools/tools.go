// Package tools defines the Tool capability surface consumed by the
// ToolRegistry and agent stack (spec §6, §4.A).
package tools

import "context"

// Ident is the strong type for tool identifiers, avoiding accidental mixing
// of free-form strings with tool names in maps and APIs.
type Ident string

func (i Ident) String() string { return string(i) }

// FieldIssue reports a single validation issue for a tool's parameters.
type FieldIssue struct {
	Field      string
	Constraint string
	Allowed    []string
}

// Tool is the capability interface every registered tool implements.
type Tool interface {
	// Name returns the tool's registered identifier.
	Name() string
	// DescribeOperations lists the operation names this tool supports.
	DescribeOperations() []string
	// ValidateParams reports whether params are acceptable for op, and a
	// human-readable remediation message when they are not.
	ValidateParams(op string, params map[string]any) (ok bool, msg string)
	// Run executes op with params. Implementations may block; the executor
	// calls Run on a goroutine and is responsible for cancellation via ctx.
	Run(ctx context.Context, op string, params map[string]any) (any, error)
}

// OperationSchema describes one operation's parameters for function-calling
// schema derivation and documentation.
type OperationSchema struct {
	Description string
	Parameters  map[string]FieldSchema
	Examples    []map[string]any
}

// FieldSchema describes a single parameter field.
type FieldSchema struct {
	Type        string
	Required    bool
	Description string
	Examples    []any
	Validation  string
}

// SchemaProvider is implemented by tools that can describe an operation's
// schema statically. Tools without a SchemaProvider get no compiled schema
// in the registry and no parameter schema in ToolAgent; nothing in the
// module applies internal/tools/reflectschema to them automatically.
type SchemaProvider interface {
	OperationSchema(op string) (*OperationSchema, bool)
}

// Blocking marks tools whose Run is CPU-bound or makes blocking syscalls.
// Registry.Invoke does not consult it and calls Run directly; the worker
// pool routing in internal/parallel keys on parallel.Blocking, which is
// implemented by TaskRunners, not by tools.
type Blocking interface {
	Blocking() bool
}
