package messages

import (
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ModelMessage is the closed set of payloads that can appear in a thread.
type ModelMessage interface {
	message()
	kind() string
}

// Request marks payloads that flow toward the model.
type Request interface {
	ModelMessage
	request()
}

// Response marks payloads produced by the model.
type Response interface {
	ModelMessage
	response()
}

// Message is the envelope around a payload. Order within a thread is
// semantically significant; once appended a message is never mutated.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Step      int             `json:"step"`
	Payload   T               `json:"payload"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

// Instructions carries the system instructions for a model call.
type Instructions struct {
	Content string `json:"content"`
}

func (Instructions) message()     {}
func (Instructions) kind() string { return "instructions" }

// UserMessage is caller input.
type UserMessage struct {
	Content string `json:"content"`
}

func (UserMessage) message()     {}
func (UserMessage) request()     {}
func (UserMessage) kind() string { return "user" }

// AssistantMessage is model output: free text, or the textual form of a
// structured payload when an output schema was declared.
type AssistantMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

func (AssistantMessage) message()     {}
func (AssistantMessage) response()    {}
func (AssistantMessage) kind() string { return "assistant" }

// ToolCallData is one tool invocation requested by the model. The ID is
// unique within its turn and ties the eventual result back to the request.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallMessage groups the tool invocations of one model turn.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
}

func (ToolCallMessage) message()     {}
func (ToolCallMessage) response()    {}
func (ToolCallMessage) kind() string { return "tool_call" }

// ToolResponse is the successful result of one tool call.
type ToolResponse struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func (ToolResponse) message()     {}
func (ToolResponse) request()     {}
func (ToolResponse) kind() string { return "tool_response" }

// Retry is a failure descriptor fed back to the model. With a ToolCallID it
// answers a failed tool call; without one it is a repair prompt summarizing
// why the model's terminal output failed validation.
type Retry struct {
	Reason     string `json:"reason"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

func (Retry) message()     {}
func (Retry) request()     {}
func (Retry) kind() string { return "retry" }
