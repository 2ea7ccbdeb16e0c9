// Package testmodel provides a scripted model backend. Each call pops the
// next scripted turn, so tests and examples can drive the execution loop
// through multi-turn conversations without a network or an API key.
package testmodel

import (
	"context"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/provider"
)

// Turn is one scripted model call.
type Turn struct {
	content   string
	toolCalls []messages.ToolCallData
	err       *provider.ModelError
}

// Text scripts an assistant response with the given content. When the loop
// requests streaming, the content is also delivered as chunks.
func Text(content string) Turn {
	return Turn{content: content}
}

// ToolCalls scripts a turn that requests the given tool invocations.
func ToolCalls(calls ...messages.ToolCallData) Turn {
	return Turn{toolCalls: calls}
}

// Call is a convenience for a single tool invocation.
func Call(id, name, arguments string) Turn {
	return ToolCalls(messages.ToolCallData{ID: id, Name: name, Arguments: arguments})
}

// Fail scripts a turn that fails with the given model error.
func Fail(err *provider.ModelError) Turn {
	return Turn{err: err}
}

// FailRetryable scripts a transient failure.
func FailRetryable(message string) Turn {
	return Fail(&provider.ModelError{Provider: "testmodel", Message: message, Retryable: true})
}

// FailTerminal scripts a permanent failure.
func FailTerminal(message string) Turn {
	return Fail(&provider.ModelError{Provider: "testmodel", Message: message, Retryable: false})
}

// Recorded is the observable part of one completion request.
type Recorded struct {
	Instructions string
	Stream       bool
	Messages     []messages.Message[messages.ModelMessage]
	Tools        []string
	HasSchema    bool
}

// Model is a scripted backend that serves its own model name.
type Model struct {
	name string

	mu       sync.Mutex
	turns    []Turn
	next     int
	recorded []Recorded
}

var (
	_ provider.Provider = &Model{}
	_ provider.Model    = &Model{}
)

// New creates a scripted model that plays the turns in order, one per
// completion call.
func New(name string, turns ...Turn) *Model {
	return &Model{name: name, turns: turns}
}

func (m *Model) Name() string                { return m.name }
func (m *Model) Provider() provider.Provider { return m }

// Calls returns the completion requests received so far.
func (m *Model) Calls() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recorded, len(m.recorded))
	copy(out, m.recorded)
	return out
}

func (m *Model) record(params provider.CompletionParams) {
	rec := Recorded{
		Instructions: params.Instructions,
		Stream:       params.Stream,
		Messages:     params.Thread.Messages(),
		HasSchema:    params.ResponseSchema != nil,
	}
	for _, def := range params.Tools {
		rec.Tools = append(rec.Tools, def.Name)
	}
	m.recorded = append(m.recorded, rec)
}

func (m *Model) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	m.mu.Lock()
	if m.next >= len(m.turns) {
		m.mu.Unlock()
		return nil, &provider.ModelError{Provider: m.name, Message: "script exhausted"}
	}
	turn := m.turns[m.next]
	m.next++
	m.record(params)
	m.mu.Unlock()

	runID := params.RunID
	turnID := params.Thread.ID()
	// fork so the checkpoint only carries messages this backend added
	checkpoint := params.Thread.Fork().Checkpoint()

	events := make(chan provider.StreamEvent, 16)
	go func() {
		defer close(events)

		send := func(event provider.StreamEvent) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(provider.Delim{RunID: runID, TurnID: turnID, Delim: "start"}) {
			return
		}

		switch {
		case turn.err != nil:
			send(provider.Error{
				RunID: runID, TurnID: turnID,
				Err:       turn.err,
				Timestamp: strfmt.DateTime(time.Now()),
			})
			return

		case len(turn.toolCalls) > 0:
			if params.Stream {
				if !send(provider.Chunk[messages.ToolCallMessage]{
					RunID: runID, TurnID: turnID,
					Chunk:     messages.ToolCallMessage{ToolCalls: turn.toolCalls},
					Timestamp: strfmt.DateTime(time.Now()),
				}) {
					return
				}
			}
			if !send(provider.Response[messages.ToolCallMessage]{
				RunID: runID, TurnID: turnID,
				Checkpoint: checkpoint,
				Response:   messages.ToolCallMessage{ToolCalls: turn.toolCalls},
				Timestamp:  strfmt.DateTime(time.Now()),
			}) {
				return
			}

		default:
			if params.Stream {
				for _, piece := range splitContent(turn.content) {
					if !send(provider.Chunk[messages.AssistantMessage]{
						RunID: runID, TurnID: turnID,
						Chunk:     messages.AssistantMessage{Content: piece},
						Timestamp: strfmt.DateTime(time.Now()),
					}) {
						return
					}
				}
			}
			if !send(provider.Response[messages.AssistantMessage]{
				RunID: runID, TurnID: turnID,
				Checkpoint: checkpoint,
				Response:   messages.AssistantMessage{Content: turn.content},
				Timestamp:  strfmt.DateTime(time.Now()),
			}) {
				return
			}
		}

		send(provider.Delim{RunID: runID, TurnID: turnID, Delim: "end"})
	}()

	return events, nil
}

// Blocking is a backend that never answers until its context is cancelled,
// for exercising timeouts and cancellation.
type Blocking struct {
	name string
}

func NewBlocking(name string) *Blocking { return &Blocking{name: name} }

func (b *Blocking) Name() string                { return b.name }
func (b *Blocking) Provider() provider.Provider { return b }

func (b *Blocking) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	events := make(chan provider.StreamEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

func splitContent(content string) []string {
	runes := []rune(content)
	if len(runes) < 8 {
		return []string{content}
	}
	size := (len(runes) + 3) / 4
	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
