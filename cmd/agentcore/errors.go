package main

import (
	"context"
	"errors"

	"goa.design/agentcore/internal/dslvalidate"
	"goa.design/agentcore/internal/toolerrors"
)

// validationFailedError wraps a dslvalidate.ValidationResult whose IsValid
// is false, so the CLI can report exit code 1 without re-deriving it from
// the issue list at every call site.
type validationFailedError struct {
	result *dslvalidate.ValidationResult
}

func (e *validationFailedError) Error() string { return "dsl validation failed" }

// exitCodeFor maps an error to the §6 CLI exit codes: 0 success, 1
// validation, 2 execution failure, 3 timeout, 4 cancellation, 5 resource
// exhaustion. Unrecognized errors map to the generic execution-failure code.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var vfe *validationFailedError
	if errors.As(err, &vfe) {
		return 1
	}
	var ee *toolerrors.ExecutionError
	if errors.As(err, &ee) {
		switch ee.Code {
		case toolerrors.CodeValidation:
			return 1
		case toolerrors.CodeTimeout:
			return 3
		case toolerrors.CodeCancelled:
			return 4
		case toolerrors.CodeResourceExhausted:
			return 5
		default:
			return 2
		}
	}
	var re *toolerrors.RecoveryExhaustedError
	if errors.As(err, &re) {
		return 2
	}
	if errors.Is(err, context.Canceled) {
		return 4
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return 3
	}
	return 2
}
