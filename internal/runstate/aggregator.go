// Package runstate manages the state owned by a single run: the append-only
// conversation thread, the step counter, and the validation-retry counter.
// Aggregators support fork/join so tool dispatch can work on an isolated view
// and commit its messages atomically.
package runstate

import (
	"iter"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/uuidx"
)

// Thread is an ordered collection of erased messages.
type Thread []messages.Message[messages.ModelMessage]

// Len returns the number of messages in the thread.
func (t Thread) Len() int { return len(t) }

// Aggregator owns one run's conversation state. It is exclusively owned by
// the execution loop for the lifetime of the run; the loop is the only
// writer. Messages are append-only, counters only increase.
type Aggregator struct {
	id       uuid.UUID
	messages Thread
	initLen  int // length at fork time, used when joining
	steps    int
	retries  int
}

// New creates an empty aggregator with a fresh identifier.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(Thread, 0),
	}
}

// ID returns the aggregator's unique identifier.
func (a *Aggregator) ID() uuid.UUID { return a.id }

// Len returns the total number of messages held.
func (a *Aggregator) Len() int { return a.messages.Len() }

// TurnLen returns the number of messages added since the fork point.
func (a *Aggregator) TurnLen() int { return len(a.messages) - a.initLen }

// Steps returns the number of model calls made so far in this run.
func (a *Aggregator) Steps() int { return a.steps }

// NextStep increments the step counter and returns its new value.
func (a *Aggregator) NextStep() int {
	a.steps++
	return a.steps
}

// Retries returns the number of validation retries consumed so far.
func (a *Aggregator) Retries() int { return a.retries }

// NextRetry increments the validation-retry counter and returns its new value.
func (a *Aggregator) NextRetry() int {
	a.retries++
	return a.retries
}

// Messages returns a copy of the thread.
func (a *Aggregator) Messages() Thread {
	return slices.Clone(a.messages)
}

// MessagesIter iterates the thread without copying it.
func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

func eraseType[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Step:      m.Step,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// AddInstructions appends a system instructions message.
func (a *Aggregator) AddInstructions(m messages.Message[messages.Instructions]) {
	a.add(eraseType(m))
}

// AddUserPrompt appends a caller input message.
func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(eraseType(m))
}

// AddAssistantMessage appends a model output message.
func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(eraseType(m))
}

// AddToolCall appends the tool invocation message of a model turn.
func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(eraseType(m))
}

// AddToolResponse appends a successful tool result.
func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(eraseType(m))
}

// AddRetry appends a failure descriptor or repair prompt.
func (a *Aggregator) AddRetry(m messages.Message[messages.Retry]) {
	a.add(eraseType(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

// Fork creates an aggregator that starts from a copy of the current thread.
// New messages on the fork can later be committed back with Join; counters
// carry over so limits keep their meaning on the forked view.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
		steps:    a.steps,
		retries:  a.retries,
	}
}

// Join appends the messages b accumulated since its fork point and adopts
// b's counters when they are ahead.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.steps = max(a.steps, b.steps)
	a.retries = max(a.retries, b.retries)
}

// Checkpoint snapshots the aggregator.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		initLen:  a.initLen,
	}
}

// Checkpoint is an immutable snapshot of an aggregator at a point in time.
// Providers attach one to their terminal stream events so the loop can merge
// any messages the provider accumulated.
type Checkpoint struct {
	id       uuid.UUID
	messages Thread
	initLen  int
}

// ID returns the identifier of the source aggregator.
func (c *Checkpoint) ID() uuid.UUID { return c.id }

// Messages returns a copy of the snapshotted thread.
func (c *Checkpoint) Messages() Thread { return slices.Clone(c.messages) }

// MergeInto appends the messages recorded after the snapshot's fork point to
// another aggregator.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string                                     `json:"id"`
		Messages []*messages.Message[messages.ModelMessage] `json:"messages"`
		InitLen  int                                        `json:"init_len"`
	}{
		ID:       c.id.String(),
		Messages: ptrSlice(c.messages),
		InitLen:  c.initLen,
	})
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID       string            `json:"id"`
		Messages []json.RawMessage `json:"messages"`
		InitLen  int               `json:"init_len"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.initLen = tmp.InitLen
	c.messages = make(Thread, len(tmp.Messages))
	for i, raw := range tmp.Messages {
		msg, err := messages.UnmarshalMessage(raw)
		if err != nil {
			return err
		}
		c.messages[i] = msg
	}
	return nil
}

func ptrSlice[T any](in []T) (out []*T) {
	out = make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return
}
