// Package toolerrors provides the stable machine error codes and the
// ExecutionError chain type used across the tool registry, DSL engine and
// agent stack (spec §7).
package toolerrors

import (
	"errors"
	"fmt"
)

// Code is a stable machine error code surfaced on ExecutionResult.ErrorCode.
type Code string

// Error codes from §7.
const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeToolNotFound        Code = "TOOL_NOT_FOUND"
	CodeOperationNotFound   Code = "TOOL_OPERATION_NOT_FOUND"
	CodeExecution           Code = "EXECUTION_ERROR"
	CodeTimeout             Code = "TIMEOUT_ERROR"
	CodeCancelled           Code = "CANCELLED"
	CodeResourceExhausted   Code = "RESOURCE_EXHAUSTED"
	CodePlanning            Code = "PLANNING_ERROR"
	CodeRecoveryExhausted   Code = "RECOVERY_EXHAUSTED"
	CodeLLM                 Code = "LLM_ERROR"
	CodeHook                Code = "HOOK_ERROR"
)

// Scope distinguishes which layer raised an ExecutionError, supplementing
// the machine Code with the original implementation's task/workflow/resource
// exception taxonomy. It is additive and never changes the Code a caller
// matches against.
type Scope string

// Known scopes.
const (
	ScopeNone     Scope = ""
	ScopeTask     Scope = "task"
	ScopeWorkflow Scope = "workflow"
	ScopeResource Scope = "resource"
)

// ExecutionError is a structured failure that preserves message, machine
// code and causal context while implementing the standard error interface.
// Errors may nest via Cause so errors.Is/errors.As walk the full chain.
type ExecutionError struct {
	Code    Code
	Scope   Scope
	Message string
	Cause   *ExecutionError
}

// New constructs an ExecutionError with the given code and message.
func New(code Code, message string) *ExecutionError {
	return &ExecutionError{Code: code, Message: message}
}

// Newf formats message according to format and args.
func Newf(code Code, format string, args ...any) *ExecutionError {
	return New(code, fmt.Sprintf(format, args...))
}

// WithScope returns a copy of e with Scope set.
func (e *ExecutionError) WithScope(scope Scope) *ExecutionError {
	cp := *e
	cp.Scope = scope
	return &cp
}

// Wrap converts an arbitrary error into an ExecutionError chain, assigning
// code to the outermost link when the cause is not already an ExecutionError.
func Wrap(code Code, message string, cause error) *ExecutionError {
	if cause == nil {
		return New(code, message)
	}
	var inner *ExecutionError
	if errors.As(cause, &inner) {
		return &ExecutionError{Code: code, Message: message, Cause: inner}
	}
	return &ExecutionError{Code: code, Message: message, Cause: &ExecutionError{Code: CodeExecution, Message: cause.Error()}}
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying ExecutionError, supporting errors.Is/As.
func (e *ExecutionError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same Code,
// allowing errors.Is(err, toolerrors.New(CodeTimeout, "")) style checks.
func (e *ExecutionError) Is(target error) bool {
	var t *ExecutionError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// RecoveryCause records the outcome of one attempted recovery strategy.
type RecoveryCause struct {
	Strategy string
	Err      error
}

// RecoveryExhaustedError is raised when every configured recovery strategy
// failed. It carries one RecoveryCause per attempted strategy, in order.
type RecoveryExhaustedError struct {
	Message string
	Causes  []RecoveryCause
}

// Error implements the error interface.
func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("%s (%d causes)", e.Message, len(e.Causes))
}

// Code reports the stable machine code for a recovery-exhausted failure.
func (e *RecoveryExhaustedError) Code() Code { return CodeRecoveryExhausted }

// Retryable classifies errors that a RETRY recovery strategy should act on:
// timeouts, transient network failures and rate-limit breaches.
func Retryable(err error) bool {
	var ee *ExecutionError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Code {
	case CodeTimeout, CodeResourceExhausted, CodeLLM:
		return true
	default:
		return false
	}
}
