package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/agentcore/internal/tools"
)

// compileOperationSchema renders an OperationSchema into a JSON Schema
// document and compiles it, so ToolRegistry.Invoke can perform structural
// validation in addition to each tool's own ValidateParams.
func compileOperationSchema(op *tools.OperationSchema) (*jsonschema.Schema, error) {
	if op == nil {
		return nil, nil
	}
	props := map[string]any{}
	var required []string
	for name, field := range op.Parameters {
		props[name] = map[string]any{"type": field.Type}
		if field.Required {
			required = append(required, name)
		}
	}
	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "operation-schema.json"
	unmarshalled, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if err := compiler.AddResource(resourceName, unmarshalled); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceName)
}

// validateAgainstSchema validates params against a compiled operation
// schema, returning a remediation message on the first failure.
func validateAgainstSchema(schema *jsonschema.Schema, params map[string]any) (bool, string) {
	if schema == nil {
		return true, ""
	}
	if err := schema.Validate(params); err != nil {
		return false, fmt.Sprintf("schema validation failed: %v", err)
	}
	return true, ""
}
