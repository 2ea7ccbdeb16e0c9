package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/uuidx"
)

type recordingHook struct {
	events.NoopHook
	mu         sync.Mutex
	prompts    []messages.Message[messages.UserMessage]
	responses  []messages.Message[messages.ToolResponse]
	retries    []messages.Message[messages.Retry]
	assistants []messages.Message[messages.AssistantMessage]
	finals     []events.Final
	errs       []error
}

func (h *recordingHook) OnUserPrompt(_ context.Context, m messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, m)
}

func (h *recordingHook) OnToolCallResponse(_ context.Context, m messages.Message[messages.ToolResponse]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, m)
}

func (h *recordingHook) OnRetry(_ context.Context, m messages.Message[messages.Retry]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, m)
}

func (h *recordingHook) OnAssistantMessage(_ context.Context, m messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistants = append(h.assistants, m)
}

func (h *recordingHook) OnFinal(_ context.Context, f events.Final) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finals = append(h.finals, f)
}

func (h *recordingHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHook) snapshot() (int, int, int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.prompts), len(h.responses), len(h.retries), len(h.assistants), len(h.finals), len(h.errs)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestLocalBrokerForwardsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := Local()
	top := b.Topic(ctx, "run-1")

	hook := &recordingHook{}
	sub, err := top.Subscribe(ctx, hook)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	runID, turnID := uuidx.New(), uuidx.New()

	require.NoError(t, top.Publish(ctx, events.Request[messages.UserMessage]{
		RunID: runID, TurnID: turnID, Message: messages.UserMessage{Content: "hi"}, Sender: "user",
	}))
	require.NoError(t, top.Publish(ctx, events.Request[messages.ToolResponse]{
		RunID: runID, TurnID: turnID, Step: 1,
		Message: messages.ToolResponse{ToolCallID: "call_1", ToolName: "calculator", Content: "4"},
	}))
	require.NoError(t, top.Publish(ctx, events.Request[messages.Retry]{
		RunID: runID, TurnID: turnID, Step: 2,
		Message: messages.Retry{Reason: "answer: expected integer, got string"},
	}))
	require.NoError(t, top.Publish(ctx, events.Response[messages.AssistantMessage]{
		RunID: runID, TurnID: turnID, Step: 2,
		Response: messages.AssistantMessage{Content: "done"},
	}))
	require.NoError(t, top.Publish(ctx, events.Final{
		RunID: runID, TurnID: turnID, Steps: 2, Content: "done",
	}))
	require.NoError(t, top.Publish(ctx, events.Error{
		RunID: runID, TurnID: turnID, Err: errors.New("boom"),
	}))
	// control events are swallowed
	require.NoError(t, top.Publish(ctx, events.Delim{RunID: runID, TurnID: turnID, Delim: "end"}))

	eventually(t, func() bool {
		p, r, rt, a, f, e := hook.snapshot()
		return p == 1 && r == 1 && rt == 1 && a == 1 && f == 1 && e == 1
	})

	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Equal(t, "hi", hook.prompts[0].Payload.Content)
	assert.Equal(t, 1, hook.responses[0].Step)
	assert.Equal(t, "done", hook.finals[0].Content)
	assert.EqualError(t, hook.errs[0], "boom")
}

func TestLocalBrokerMultipleSubscribers(t *testing.T) {
	ctx := context.Background()
	b := Local()
	top := b.Topic(ctx, "run-2")

	h1, h2 := &recordingHook{}, &recordingHook{}
	s1, err := top.Subscribe(ctx, h1)
	require.NoError(t, err)
	defer s1.Unsubscribe()
	s2, err := top.Subscribe(ctx, h2)
	require.NoError(t, err)
	defer s2.Unsubscribe()

	require.NoError(t, top.Publish(ctx, events.Final{RunID: uuidx.New(), TurnID: uuidx.New(), Content: "x"}))

	eventually(t, func() bool {
		_, _, _, _, f1, _ := h1.snapshot()
		_, _, _, _, f2, _ := h2.snapshot()
		return f1 == 1 && f2 == 1
	})
}

func TestLocalBrokerTopicIdentity(t *testing.T) {
	ctx := context.Background()
	b := Local()
	assert.Same(t, b.Topic(ctx, "a"), b.Topic(ctx, "a"))
	assert.NotSame(t, b.Topic(ctx, "a"), b.Topic(ctx, "b"))
}

func TestLocalBrokerRejectsNilHook(t *testing.T) {
	ctx := context.Background()
	top := Local().Topic(ctx, "run-3")
	_, err := top.Subscribe(ctx, nil)
	assert.Error(t, err)
}

func TestLocalBrokerUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	top := Local().Topic(ctx, "run-4")

	hook := &recordingHook{}
	sub, err := top.Subscribe(ctx, hook)
	require.NoError(t, err)
	sub.Unsubscribe()
	// double unsubscribe is a no-op
	sub.Unsubscribe()

	require.NoError(t, top.Publish(ctx, events.Final{RunID: uuidx.New(), TurnID: uuidx.New(), Content: "x"}))
	time.Sleep(20 * time.Millisecond)
	_, _, _, _, f, _ := hook.snapshot()
	assert.Zero(t, f)
}
