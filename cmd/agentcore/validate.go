package main

import (
	"context"
	"fmt"

	"goa.design/agentcore/internal/dslvalidate"
	"goa.design/agentcore/internal/tools/builtin"
	"goa.design/clue/log"
)

// builtinToolNames lists the tools.Tool implementations registered by
// default, used to drive the validator's tool-name catalog check.
var builtinToolNames = map[string]bool{
	builtin.Echo{}.Name(): true,
}

func runValidateDSL(ctx context.Context, file string) error {
	parsed, err := loadDSL(file)
	if err != nil {
		return err
	}
	if !parsed.Success {
		return parseIssuesError(parsed.Errors)
	}

	validator := dslvalidate.New(dslvalidate.WithCatalog(dslvalidate.Catalog{
		Tools: func(name string) bool { return builtinToolNames[name] },
	}))
	result := validator.Validate(parsed.Root)

	for _, issue := range result.Issues {
		log.Printf(ctx, "%s [%s] %s", issue.Severity, issue.NodeID, issue.Message)
	}
	fmt.Printf("nodes=%d max_depth=%d estimated_duration=%.1fs valid=%t\n",
		parsed.Metadata.NodeCount, parsed.Metadata.MaxDepth, result.EstimatedDuration, result.IsValid)

	if !result.IsValid {
		return &validationFailedError{result: result}
	}
	return nil
}
