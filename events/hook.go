package events

import (
	"context"

	"github.com/casualjim/strix/messages"
)

// Hook receives the observable events of a run as typed callbacks.
// Implementations must be safe for concurrent use; the dispatcher may
// invoke tool-related callbacks from multiple goroutines. Hooks observe the
// run, they never steer it.
type Hook interface {
	OnUserPrompt(context.Context, messages.Message[messages.UserMessage])
	OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage])
	OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])
	OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage])
	OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])
	OnRetry(context.Context, messages.Message[messages.Retry])
	OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage])
	OnFinal(context.Context, Final)
	OnError(context.Context, error)
}

// NoopHook ignores every event. Embed it to implement only the callbacks
// you care about.
type NoopHook struct{}

var _ Hook = NoopHook{}

func (NoopHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage])          {}
func (NoopHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {}
func (NoopHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])   {}
func (NoopHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {}
func (NoopHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])   {}
func (NoopHook) OnRetry(context.Context, messages.Message[messages.Retry])                     {}
func (NoopHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (NoopHook) OnFinal(context.Context, Final) {}
func (NoopHook) OnError(context.Context, error) {}
