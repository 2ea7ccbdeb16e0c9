package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/strix/schema"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Run("configuration wraps cause", func(t *testing.T) {
		cause := errors.New("duplicate tool name")
		err := error(&ConfigurationError{Err: cause})
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("step limit", func(t *testing.T) {
		err := error(&StepLimitError{Steps: 10})
		var sle *StepLimitError
		require.ErrorAs(t, err, &sle)
		assert.Equal(t, 10, sle.Steps)
		assert.Contains(t, err.Error(), "10 steps")
	})

	t.Run("validation exhausted keeps fields", func(t *testing.T) {
		err := error(&ValidationExhaustedError{
			Attempts: 3,
			Fields:   []schema.FieldError{{Path: "answer", Message: "expected integer, got string"}},
		})
		var vee *ValidationExhaustedError
		require.ErrorAs(t, err, &vee)
		assert.Contains(t, err.Error(), "answer: expected integer, got string")
	})

	t.Run("cancelled unwraps to context error", func(t *testing.T) {
		err := error(&CancelledError{Cause: context.DeadlineExceeded})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("tool errors carry identity", func(t *testing.T) {
		unknown := &UnknownToolError{Name: "teleport"}
		assert.Contains(t, unknown.Error(), "teleport")

		args := &ToolArgumentError{Tool: "get_weather", CallID: "call_1",
			Fields: []schema.FieldError{{Path: "location", Message: "missing required field"}}}
		assert.Contains(t, args.Error(), "get_weather")
		assert.Contains(t, args.Error(), "location")

		cause := errors.New("connection refused")
		exec := &ToolExecutionError{Tool: "get_weather", CallID: "call_1", Cause: cause}
		assert.ErrorIs(t, exec, cause)

		timeout := &ToolExecutionError{Tool: "slow", Cause: context.DeadlineExceeded, Timeout: true}
		assert.Contains(t, timeout.Error(), "timed out")
	})
}

func TestRunResult(t *testing.T) {
	ok := RunResult[string]{Success: "done"}
	assert.True(t, ok.IsSuccess())
	assert.False(t, ok.IsError())

	bad := RunResult[string]{Err: errors.New("boom")}
	assert.True(t, bad.IsError())
}
