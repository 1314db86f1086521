// Package observation implements ToolObservation (spec §4.B): a structured,
// append-only record of one tool invocation.
package observation

import (
	"fmt"
	"strings"
	"time"
)

// Observation records the inputs, outputs, timing and outcome of a single
// tool invocation. Timestamp is captured at construction; ExecutionTimeMS
// is measured against a monotonic clock (time.Since over a start value).
type Observation struct {
	ToolName        string
	Parameters      map[string]any
	Result          any
	Success         bool
	Err             string
	ExecutionTimeMS float64
	Timestamp       time.Time
}

// New constructs an Observation for a successful invocation.
func New(toolName string, params map[string]any, result any, start time.Time) Observation {
	return Observation{
		ToolName:        toolName,
		Parameters:      params,
		Result:          result,
		Success:         true,
		ExecutionTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp:       time.Now().UTC(),
	}
}

// NewFailed constructs an Observation for a failed invocation.
func NewFailed(toolName string, params map[string]any, err error, start time.Time) Observation {
	return Observation{
		ToolName:        toolName,
		Parameters:      params,
		Success:         false,
		Err:             err.Error(),
		ExecutionTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp:       time.Now().UTC(),
	}
}

// ToMap renders a round-trip-safe map of all fields.
func (o Observation) ToMap() map[string]any {
	return map[string]any{
		"tool_name":         o.ToolName,
		"parameters":        o.Parameters,
		"result":            o.Result,
		"success":           o.Success,
		"error":             o.Err,
		"execution_time_ms": o.ExecutionTimeMS,
		"timestamp":         o.Timestamp.Format(time.RFC3339Nano),
	}
}

// ToText renders the short human-readable text block:
//
//	Tool: <name>
//	Parameters: …
//	Status: SUCCESS|FAILURE
//	Result: …
//	Time: NNN.NNms
func (o Observation) ToText() string {
	var b strings.Builder
	status := "SUCCESS"
	body := fmt.Sprintf("%v", o.Result)
	if !o.Success {
		status = "FAILURE"
		body = o.Err
	}
	fmt.Fprintf(&b, "Tool: %s\n", o.ToolName)
	fmt.Fprintf(&b, "Parameters: %v\n", o.Parameters)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Result: %s\n", body)
	fmt.Fprintf(&b, "Time: %.2fms", o.ExecutionTimeMS)
	return b.String()
}
