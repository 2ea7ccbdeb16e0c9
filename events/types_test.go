package events

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/uuidx"
)

func TestEventSerialization(t *testing.T) {
	runID, turnID := uuidx.New(), uuidx.New()

	tests := []struct {
		name  string
		event Event
	}{
		{"delim", Delim{RunID: runID, TurnID: turnID, Sender: "calc", Delim: "start"}},
		{"assistant chunk", Chunk[messages.AssistantMessage]{
			RunID: runID, TurnID: turnID, Step: 2, Sender: "calc",
			Chunk: messages.AssistantMessage{Content: "the ans"},
		}},
		{"tool call chunk", Chunk[messages.ToolCallMessage]{
			RunID: runID, TurnID: turnID, Step: 1, Sender: "calc",
			Chunk: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "call_1", Name: "calculator", Arguments: "{}"}}},
		}},
		{"user request", Request[messages.UserMessage]{
			RunID: runID, TurnID: turnID, Sender: "user",
			Message: messages.UserMessage{Content: "what is 2+2?"},
		}},
		{"tool response request", Request[messages.ToolResponse]{
			RunID: runID, TurnID: turnID, Step: 1, Sender: "calc",
			Message: messages.ToolResponse{ToolCallID: "call_1", ToolName: "calculator", Content: "4"},
		}},
		{"retry request", Request[messages.Retry]{
			RunID: runID, TurnID: turnID, Step: 2, Sender: "calc",
			Message: messages.Retry{Reason: "answer: expected integer, got string"},
		}},
		{"assistant response", Response[messages.AssistantMessage]{
			RunID: runID, TurnID: turnID, Step: 2, Sender: "calc",
			Response: messages.AssistantMessage{Content: "the answer is 4"},
		}},
		{"tool call response", Response[messages.ToolCallMessage]{
			RunID: runID, TurnID: turnID, Step: 1, Sender: "calc",
			Response: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "call_1", Name: "calculator", Arguments: "{}"}}},
		}},
		{"final", Final{RunID: runID, TurnID: turnID, Steps: 2, Sender: "calc", Content: `{"answer":4}`}},
		{"error", Error{RunID: runID, TurnID: turnID, Sender: "calc", Err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ToJSON(tt.event)
			require.NoError(t, err)
			assert.True(t, gjson.ValidBytes(data))

			decoded, err := FromJSON(data)
			require.NoError(t, err)
			if _, isErr := tt.event.(Error); isErr {
				e := decoded.(Error)
				assert.EqualError(t, e.Err, "boom")
				return
			}
			assert.Equal(t, tt.event, decoded)
		})
	}
}

func TestFromJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", "not json"},
		{"missing type", `{"run_id":"x"}`},
		{"unknown type", `{"type":"bogus"}`},
		{"unknown chunk kind", `{"type":"chunk","kind":"bogus"}`},
		{"unknown request kind", `{"type":"request","kind":"assistant"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFinalRoundTripPreservesContent(t *testing.T) {
	in := Final{RunID: uuidx.New(), TurnID: uuidx.New(), Steps: 3, Content: "plain text answer"}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Final
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Content, out.Content)
	assert.Equal(t, 3, out.Steps)
}
