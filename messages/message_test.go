package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/strix/pkg/uuidx"
)

func TestBuilder(t *testing.T) {
	runID := uuidx.New()
	turnID := uuidx.New()

	b := New().WithRunID(runID).WithTurnID(turnID).WithStep(3).WithSender("strix")

	t.Run("user prompt", func(t *testing.T) {
		msg := b.UserPrompt("What is 2+2?")
		assert.Equal(t, runID, msg.RunID)
		assert.Equal(t, turnID, msg.TurnID)
		assert.Equal(t, 3, msg.Step)
		assert.Equal(t, "strix", msg.Sender)
		assert.Equal(t, "What is 2+2?", msg.Payload.Content)
		assert.WithinDuration(t, time.Now(), time.Time(msg.Timestamp), time.Second)
	})

	t.Run("assistant message", func(t *testing.T) {
		msg := b.AssistantMessage("4")
		assert.Equal(t, "4", msg.Payload.Content)
	})

	t.Run("tool call", func(t *testing.T) {
		msg := b.ToolCall(
			ToolCallData{ID: "call_1", Name: "get_weather", Arguments: `{"city":"A"}`},
			ToolCallData{ID: "call_2", Name: "get_weather", Arguments: `{"city":"B"}`},
		)
		require.Len(t, msg.Payload.ToolCalls, 2)
		assert.Equal(t, "call_1", msg.Payload.ToolCalls[0].ID)
		assert.Equal(t, "call_2", msg.Payload.ToolCalls[1].ID)
	})

	t.Run("tool response", func(t *testing.T) {
		msg := b.ToolResponse("call_1", "get_weather", "Sunny, 25C")
		assert.Equal(t, "call_1", msg.Payload.ToolCallID)
		assert.Equal(t, "get_weather", msg.Payload.ToolName)
		assert.Equal(t, "Sunny, 25C", msg.Payload.Content)
	})

	t.Run("tool retry", func(t *testing.T) {
		msg := b.ToolRetry("call_1", "get_weather", "city is required")
		assert.Equal(t, "call_1", msg.Payload.ToolCallID)
		assert.Equal(t, "city is required", msg.Payload.Reason)
	})

	t.Run("repair retry", func(t *testing.T) {
		msg := b.Retry("answer: expected integer")
		assert.Empty(t, msg.Payload.ToolCallID)
		assert.Equal(t, "answer: expected integer", msg.Payload.Reason)
	})
}

func TestMessageJSONRoundTrip(t *testing.T) {
	b := New().WithRunID(uuidx.New()).WithTurnID(uuidx.New()).WithStep(2).WithSender("agent")

	t.Run("concrete payload", func(t *testing.T) {
		msg := b.AssistantMessage("hello")
		data, err := msg.MarshalJSON()
		require.NoError(t, err)

		jv := gjson.ParseBytes(data)
		assert.Equal(t, "assistant", jv.Get("kind").String())
		assert.Equal(t, int64(2), jv.Get("step").Int())
		assert.Equal(t, "hello", jv.Get("payload.content").String())

		var decoded Message[AssistantMessage]
		require.NoError(t, decoded.UnmarshalJSON(data))
		assert.Equal(t, msg.RunID, decoded.RunID)
		assert.Equal(t, msg.Step, decoded.Step)
		assert.Equal(t, msg.Payload, decoded.Payload)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		msg := b.AssistantMessage("hello")
		data, err := msg.MarshalJSON()
		require.NoError(t, err)

		var decoded Message[UserMessage]
		assert.Error(t, decoded.UnmarshalJSON(data))
	})

	t.Run("erased payload", func(t *testing.T) {
		msg := b.ToolCall(ToolCallData{ID: "call_1", Name: "lookup", Arguments: `{}`})
		data, err := msg.MarshalJSON()
		require.NoError(t, err)

		decoded, err := UnmarshalMessage(data)
		require.NoError(t, err)
		payload, ok := decoded.Payload.(ToolCallMessage)
		require.True(t, ok)
		assert.Equal(t, "call_1", payload.ToolCalls[0].ID)
	})

	t.Run("meta carried through", func(t *testing.T) {
		msg := b.WithMeta(gjson.Parse(`{"model":"test"}`)).UserPrompt("hi")
		data, err := msg.MarshalJSON()
		require.NoError(t, err)
		decoded, err := UnmarshalMessage(data)
		require.NoError(t, err)
		assert.Equal(t, "test", decoded.Meta.Get("model").String())
	})
}

func TestUnmarshalMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "invalid json", input: "not json"},
		{name: "missing kind", input: `{"payload":{}}`},
		{name: "unknown kind", input: `{"kind":"nope","payload":{}}`},
		{name: "missing payload", input: `{"kind":"user"}`},
		{name: "missing run_id", input: `{"kind":"user","payload":{"content":"hi"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMessage([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}
