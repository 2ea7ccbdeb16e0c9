package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Builder assembles message envelopes. The zero value from New produces
// messages stamped with the current time; identifiers are filled in by the
// execution loop when the message is committed to a thread.
type Builder struct {
	runID  uuid.UUID
	turnID uuid.UUID
	step   int
	sender string
	meta   gjson.Result
}

// New returns a fresh message builder.
func New() Builder {
	return Builder{}
}

// WithRunID stamps built messages with the given run identifier.
func (b Builder) WithRunID(id uuid.UUID) Builder {
	b.runID = id
	return b
}

// WithTurnID stamps built messages with the given turn identifier.
func (b Builder) WithTurnID(id uuid.UUID) Builder {
	b.turnID = id
	return b
}

// WithStep stamps built messages with the given step counter.
func (b Builder) WithStep(step int) Builder {
	b.step = step
	return b
}

// WithSender stamps built messages with the given sender.
func (b Builder) WithSender(sender string) Builder {
	b.sender = sender
	return b
}

// WithMeta attaches provider metadata to built messages.
func (b Builder) WithMeta(meta gjson.Result) Builder {
	b.meta = meta
	return b
}

func envelope[T ModelMessage](b Builder, payload T) Message[T] {
	return Message[T]{
		RunID:     b.runID,
		TurnID:    b.turnID,
		Step:      b.step,
		Payload:   payload,
		Sender:    b.sender,
		Timestamp: strfmt.DateTime(time.Now()),
		Meta:      b.meta,
	}
}

// Instructions builds a system instructions message.
func (b Builder) Instructions(content string) Message[Instructions] {
	return envelope(b, Instructions{Content: content})
}

// UserPrompt builds a caller input message.
func (b Builder) UserPrompt(content string) Message[UserMessage] {
	return envelope(b, UserMessage{Content: content})
}

// AssistantMessage builds a model output message.
func (b Builder) AssistantMessage(content string) Message[AssistantMessage] {
	return envelope(b, AssistantMessage{Content: content})
}

// ToolCall builds the tool invocation message for one model turn.
func (b Builder) ToolCall(calls ...ToolCallData) Message[ToolCallMessage] {
	return envelope(b, ToolCallMessage{ToolCalls: calls})
}

// ToolResponse builds the successful result message for one tool call.
func (b Builder) ToolResponse(callID, toolName, content string) Message[ToolResponse] {
	return envelope(b, ToolResponse{ToolCallID: callID, ToolName: toolName, Content: content})
}

// ToolRetry builds the failure descriptor answering one tool call.
func (b Builder) ToolRetry(callID, toolName, reason string) Message[Retry] {
	return envelope(b, Retry{ToolCallID: callID, ToolName: toolName, Reason: reason})
}

// Retry builds a repair prompt for invalid terminal output.
func (b Builder) Retry(reason string) Message[Retry] {
	return envelope(b, Retry{Reason: reason})
}
