package api

import (
	"fmt"

	"github.com/casualjim/strix/schema"
)

// The error taxonomy of a run. Every failure a run can surface is one of
// these types; callers distinguish them with errors.As. Tool argument and
// execution failures are normally recovered inside the loop by feeding a
// failure descriptor back to the model, so they only escape here when
// recovery is impossible.

// ConfigurationError reports an invalid setup detected before the run
// starts, such as two tools registered under the same name.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StepLimitError reports that the run hit its model-call budget without
// reaching a terminal response.
type StepLimitError struct {
	Steps int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("no terminal response after %d steps", e.Steps)
}

// ValidationExhaustedError reports that the model's terminal output still
// failed schema validation after the allowed repair attempts. Fields holds
// the problems found in the final attempt.
type ValidationExhaustedError struct {
	Attempts int
	Fields   []schema.FieldError
}

func (e *ValidationExhaustedError) Error() string {
	return fmt.Sprintf("output failed validation after %d attempts: %s",
		e.Attempts, (&schema.ValidationError{Fields: e.Fields}).Summary())
}

// CancelledError reports that the run's context was cancelled or its
// deadline expired.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// UnknownToolError reports that the model requested a tool that is not in
// the agent's catalog. This is not fed back to the model: the catalog was
// part of the request, so an unknown name means the conversation state and
// the configuration disagree.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("model requested unknown tool %q", e.Name)
}

// ToolArgumentError reports that a tool call's arguments did not match the
// tool's parameter schema.
type ToolArgumentError struct {
	Tool   string
	CallID string
	Fields []schema.FieldError
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s",
		e.Tool, (&schema.ValidationError{Fields: e.Fields}).Summary())
}

// ToolExecutionError reports that a tool ran and failed, panicked, or timed
// out.
type ToolExecutionError struct {
	Tool    string
	CallID  string
	Cause   error
	Timeout bool
}

func (e *ToolExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tool %q timed out: %v", e.Tool, e.Cause)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }
