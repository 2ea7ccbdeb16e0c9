package executor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/strix/agent"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/provider/testmodel"
	"github.com/casualjim/strix/tool"
)

func TestNewRunCommand(t *testing.T) {
	ag := agent.New(agent.Name("a"), agent.Model(testmodel.New("m")))
	thread := runstate.New()

	t.Run("defaults", func(t *testing.T) {
		cmd, err := NewRunCommand(ag, thread, events.NoopHook{})
		require.NoError(t, err)
		assert.NotEqual(t, cmd.ID().String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, DefaultMaxSteps, cmd.MaxSteps)
		assert.Equal(t, DefaultMaxValidationRetries, cmd.MaxValidationRetries)
		assert.Equal(t, DefaultCallTimeout, cmd.CallTimeout)
		assert.Equal(t, DefaultToolConcurrency, cmd.ToolConcurrency)
	})

	t.Run("missing pieces", func(t *testing.T) {
		_, err := NewRunCommand(nil, nil, nil)
		require.Error(t, err)
	})

	t.Run("builders", func(t *testing.T) {
		cmd, err := NewRunCommand(ag, thread, events.NoopHook{})
		require.NoError(t, err)
		cmd = cmd.
			WithStream(true).
			WithMaxSteps(3).
			WithMaxValidationRetries(1).
			WithCallTimeout(time.Second).
			WithToolConcurrency(2)
		assert.True(t, cmd.Stream)
		assert.Equal(t, 3, cmd.MaxSteps)
		assert.Equal(t, 1, cmd.MaxValidationRetries)
		assert.Equal(t, time.Second, cmd.CallTimeout)
		assert.Equal(t, 2, cmd.ToolConcurrency)
	})

	t.Run("validate rejects zero budgets", func(t *testing.T) {
		cmd, err := NewRunCommand(ag, thread, events.NoopHook{})
		require.NoError(t, err)
		cmd = cmd.WithMaxSteps(0)
		assert.Error(t, cmd.Validate())
	})

	t.Run("validate rejects duplicate tool names", func(t *testing.T) {
		first := tool.Must(func(s string) string { return "first:" + s },
			tool.Name("lookup"), tool.Parameters("s"))
		second := tool.Must(func(s string) string { return "second:" + s },
			tool.Name("lookup"), tool.Parameters("s"))
		dup := agent.New(agent.Name("dup"), agent.Model(testmodel.New("m")), agent.Tools(first, second))

		cmd, err := NewRunCommand(dup, runstate.New(), events.NoopHook{})
		require.NoError(t, err)
		assert.ErrorIs(t, cmd.Validate(), tool.ErrDuplicateTool)
	})
}

func TestFuture(t *testing.T) {
	t.Run("complete resolves once", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[string]())
		fut.Complete("first")
		fut.Complete("second")
		fut.Error(errors.New("ignored"))

		value, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, "first", value)
	})

	t.Run("error resolves once", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[string]())
		fut.Error(errors.New("boom"))
		fut.Complete("ignored")

		_, err := fut.Get()
		assert.EqualError(t, err, "boom")
	})

	t.Run("concurrent getters see one result", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[string]())

		var wg sync.WaitGroup
		results := make([]string, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = fut.Get()
			}()
		}
		fut.Complete("done")
		wg.Wait()
		for _, r := range results {
			assert.Equal(t, "done", r)
		}
	})

	t.Run("typed decode", func(t *testing.T) {
		type payload struct {
			Answer int `json:"answer"`
		}
		fut := NewFuture(DefaultUnmarshal[payload]())
		fut.Complete(`{"answer":4}`)
		value, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, 4, value.Answer)
	})

	t.Run("decode failure surfaces", func(t *testing.T) {
		type payload struct {
			Answer int `json:"answer"`
		}
		fut := NewFuture(DefaultUnmarshal[payload]())
		fut.Complete(`not json`)
		_, err := fut.Get()
		assert.Error(t, err)
	})
}

func TestDefaultUnmarshal(t *testing.T) {
	t.Run("string passthrough", func(t *testing.T) {
		out, err := DefaultUnmarshal[string]()([]byte("plain text"))
		require.NoError(t, err)
		assert.Equal(t, "plain text", out)
	})

	t.Run("gjson result", func(t *testing.T) {
		out, err := DefaultUnmarshal[gjson.Result]()([]byte(`{"answer":4}`))
		require.NoError(t, err)
		assert.Equal(t, int64(4), out.Get("answer").Int())
	})

	t.Run("struct", func(t *testing.T) {
		type payload struct {
			Answer int `json:"answer"`
		}
		out, err := DefaultUnmarshal[payload]()([]byte(`{"answer":4}`))
		require.NoError(t, err)
		assert.Equal(t, 4, out.Answer)
	})
}
