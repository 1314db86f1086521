package main

import (
	"os"
	"strings"

	"goa.design/agentcore/internal/dsl"
	"goa.design/agentcore/internal/toolerrors"
)

// loadDSL reads path and parses it as a DSL workflow, dispatching on file
// extension between the JSON and YAML parsers.
func loadDSL(path string) (*dsl.ParseResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.CodeValidation, "reading dsl file", err)
	}

	parser := dsl.NewParser()
	if strings.HasSuffix(path, ".json") {
		return parser.ParseJSON(raw), nil
	}
	return parser.ParseYAML(raw), nil
}

func parseIssuesError(issues []dsl.ParseIssue) error {
	if len(issues) == 0 {
		return nil
	}
	msg := "dsl parse errors: "
	for i, issue := range issues {
		if i > 0 {
			msg += "; "
		}
		msg += issue.Message
	}
	return toolerrors.New(toolerrors.CodeValidation, msg)
}
