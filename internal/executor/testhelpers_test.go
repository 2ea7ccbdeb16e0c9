package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casualjim/strix/agent"
	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/provider"
	"github.com/casualjim/strix/provider/testmodel"
	"github.com/casualjim/strix/tool"
)

// capturingHook records every callback for assertions.
type capturingHook struct {
	mu              sync.Mutex
	prompts         []messages.Message[messages.UserMessage]
	assistantChunks []messages.Message[messages.AssistantMessage]
	toolCallChunks  []messages.Message[messages.ToolCallMessage]
	toolCalls       []messages.Message[messages.ToolCallMessage]
	toolResponses   []messages.Message[messages.ToolResponse]
	retries         []messages.Message[messages.Retry]
	assistants      []messages.Message[messages.AssistantMessage]
	finals          []events.Final
	errs            []error
}

var _ events.Hook = &capturingHook{}

func (h *capturingHook) OnUserPrompt(_ context.Context, m messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, m)
}

func (h *capturingHook) OnAssistantChunk(_ context.Context, m messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantChunks = append(h.assistantChunks, m)
}

func (h *capturingHook) OnToolCallChunk(_ context.Context, m messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCallChunks = append(h.toolCallChunks, m)
}

func (h *capturingHook) OnToolCallMessage(_ context.Context, m messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCalls = append(h.toolCalls, m)
}

func (h *capturingHook) OnToolCallResponse(_ context.Context, m messages.Message[messages.ToolResponse]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolResponses = append(h.toolResponses, m)
}

func (h *capturingHook) OnRetry(_ context.Context, m messages.Message[messages.Retry]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, m)
}

func (h *capturingHook) OnAssistantMessage(_ context.Context, m messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistants = append(h.assistants, m)
}

func (h *capturingHook) OnFinal(_ context.Context, f events.Final) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finals = append(h.finals, f)
}

func (h *capturingHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func fastRetries() provider.RetryPolicy {
	return provider.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

// fixture bundles the pieces of a single-agent run.
type fixture struct {
	model  *testmodel.Model
	agent  api.Agent
	thread *runstate.Aggregator
	hook   *capturingHook
}

func newFixture(t *testing.T, prompt string, tools []tool.Definition, turns ...testmodel.Turn) *fixture {
	t.Helper()

	model := testmodel.New("scripted", turns...)

	var ag api.Agent
	if len(tools) > 0 {
		ag = agent.New(
			agent.Name("scripted-agent"),
			agent.Model(model),
			agent.Instructions("You are a test agent."),
			agent.Tools(tools[0], tools[1:]...),
		)
	} else {
		ag = agent.New(
			agent.Name("scripted-agent"),
			agent.Model(model),
			agent.Instructions("You are a test agent."),
		)
	}

	thread := runstate.New()
	thread.AddUserPrompt(messages.New().UserPrompt(prompt))

	return &fixture{model: model, agent: ag, thread: thread, hook: &capturingHook{}}
}

func (f *fixture) command(t *testing.T) RunCommand {
	t.Helper()
	cmd, err := NewRunCommand(f.agent, f.thread, f.hook)
	require.NoError(t, err)
	return cmd.WithRetryPolicy(fastRetries())
}

// run executes the command and returns the resolved string future.
func (f *fixture) run(t *testing.T, ctx context.Context, cmd RunCommand) (string, error) {
	t.Helper()
	fut := NewFuture(DefaultUnmarshal[string]())
	runErr := NewLocal().Run(ctx, cmd, fut)
	value, err := fut.Get()
	if runErr != nil {
		require.Error(t, err)
	}
	return value, err
}

func payloadKinds(thread *runstate.Aggregator) []string {
	var kinds []string
	for m := range thread.MessagesIter() {
		switch m.Payload.(type) {
		case messages.Instructions:
			kinds = append(kinds, "instructions")
		case messages.UserMessage:
			kinds = append(kinds, "user")
		case messages.AssistantMessage:
			kinds = append(kinds, "assistant")
		case messages.ToolCallMessage:
			kinds = append(kinds, "tool_call")
		case messages.ToolResponse:
			kinds = append(kinds, "tool_response")
		case messages.Retry:
			kinds = append(kinds, "retry")
		}
	}
	return kinds
}
