package provider

import (
	"errors"
	"net/http"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/uuidx"
)

func TestDelimRoundTrip(t *testing.T) {
	in := Delim{RunID: uuidx.New(), TurnID: uuidx.New(), Delim: "start"}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Delim
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestChunkRoundTrip(t *testing.T) {
	in := Chunk[messages.AssistantMessage]{
		RunID:  uuidx.New(),
		TurnID: uuidx.New(),
		Chunk:  messages.AssistantMessage{Content: "the answer"},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Chunk[messages.AssistantMessage]
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.RunID, out.RunID)
	assert.Equal(t, "the answer", out.Chunk.Content)
}

func TestResponseRoundTrip(t *testing.T) {
	mem := runstate.New()
	mem.AddUserPrompt(messages.New().UserPrompt("what is 2+2?"))

	in := Response[messages.ToolCallMessage]{
		RunID:      uuidx.New(),
		TurnID:     uuidx.New(),
		Checkpoint: mem.Checkpoint(),
		Response: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{
			{ID: "call_1", Name: "calculator", Arguments: `{"expression":"2+2"}`},
		}},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Response[messages.ToolCallMessage]
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.RunID, out.RunID)
	require.Len(t, out.Response.ToolCalls, 1)
	assert.Equal(t, "calculator", out.Response.ToolCalls[0].Name)
	assert.Equal(t, 1, out.Checkpoint.Messages().Len())
}

func TestErrorRoundTrip(t *testing.T) {
	in := Error{RunID: uuidx.New(), TurnID: uuidx.New(), Err: errors.New("boom")}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Error
	require.NoError(t, json.Unmarshal(data, &out))
	assert.EqualError(t, out.Err, "boom")
}

func TestUnmarshalRejectsWrongType(t *testing.T) {
	var d Delim
	assert.Error(t, d.UnmarshalJSON([]byte(`{"type":"chunk"}`)))

	var c Chunk[messages.AssistantMessage]
	assert.Error(t, c.UnmarshalJSON([]byte(`not json`)))
}

func TestResponseToMessage(t *testing.T) {
	src := Response[messages.AssistantMessage]{
		RunID:    uuidx.New(),
		TurnID:   uuidx.New(),
		Response: messages.AssistantMessage{Content: "done"},
	}
	var dst messages.Message[messages.AssistantMessage]
	ResponseToMessage(&dst, src)
	assert.Equal(t, src.RunID, dst.RunID)
	assert.Equal(t, "done", dst.Payload.Content)
}

func TestModelErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"gateway timeout", http.StatusGatewayTimeout, true},
		{"request timeout", http.StatusRequestTimeout, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
		{"not found", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatusCode("testmodel", tt.status, "nope")
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Contains(t, err.Error(), "testmodel")
		})
	}

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	// capped
	assert.Equal(t, time.Second, p.Delay(10))

	jittered := DefaultRetryPolicy()
	for i := 1; i <= 5; i++ {
		d := jittered.Delay(i)
		assert.GreaterOrEqual(t, d, jittered.BaseDelay)
		assert.LessOrEqual(t, d, jittered.MaxDelay+jittered.MaxDelay/4)
	}
}
