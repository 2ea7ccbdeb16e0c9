package strix

import (
	"context"
	"fmt"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/broker"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/natsx"
)

// Session binds an agent to the prompt it will be run with. The zero value
// is not usable, construct sessions with New.
type Session struct {
	name   string
	agent  api.Agent
	prompt string
	broker broker.Broker
}

// Name sets the sender name stamped on the user prompt.
var Name = opts.ForName[Session, string]("name")

// Prompt sets the user prompt that starts the run.
var Prompt = opts.ForName[Session, string]("prompt")

// Agent sets the agent the session runs.
func Agent(agent api.Agent) opts.Option[Session] {
	return opts.Type[Session](func(s *Session) error {
		s.agent = agent
		return nil
	})
}

// NATS routes the session's event stream through a NATS connection so
// out-of-process observers can subscribe to the run topic.
func NATS(client *nats.Conn) opts.Option[Session] {
	return opts.Type[Session](func(s *Session) error {
		s.broker = broker.NATS(client)
		return nil
	})
}

// NATSFromEnv is NATS with a connection to the server named by the
// NATS_URL environment variable.
func NATSFromEnv(options ...nats.Option) opts.Option[Session] {
	return opts.Type[Session](func(s *Session) error {
		client, err := natsx.NewClient(options...)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		s.broker = broker.NATS(client)
		return nil
	})
}

// New builds a session. Events fan out through an in-process broker unless
// the NATS option replaces it.
func New(options ...opts.Option[Session]) *Session {
	s := &Session{
		name:   "User",
		broker: broker.Local(),
	}
	if err := opts.Apply(s, options); err != nil {
		panic(err)
	}
	return s
}

// Run executes the session's prompt against its agent. Events flow through
// the broker topic named after the run ID; the caller's hook is subscribed
// to that topic for the duration of the run. The typed result reaches the
// hook through rc's promise when the context closes.
func (s *Session) Run(ctx context.Context, rc ExecutionContext) error {
	defer rc.onClose(ctx)

	if s.agent == nil {
		err := &api.ConfigurationError{Err: fmt.Errorf("session has no agent")}
		rc.promise.Error(err)
		return err
	}

	thread := runstate.New()
	prompt := messages.New().WithSender(s.name).UserPrompt(s.prompt)
	thread.AddUserPrompt(prompt)

	bridge := &topicHook{}
	cmd, err := rc.createCommand(s.agent, thread, bridge)
	if err != nil {
		rc.promise.Error(err)
		return err
	}
	bridge.runID = cmd.ID()
	bridge.turnID = thread.ID()
	bridge.topic = s.broker.Topic(ctx, cmd.ID().String())

	sub, err := bridge.topic.Subscribe(ctx, rc.hook)
	if err != nil {
		err = fmt.Errorf("subscribing to run topic: %w", err)
		rc.promise.Error(err)
		return err
	}
	defer sub.Unsubscribe()

	bridge.OnUserPrompt(ctx, prompt)

	return rc.executor.Run(ctx, cmd, rc.promise)
}

// topicHook republishes executor callbacks as events on a broker topic.
// Subscribers get the same callbacks on their own hooks, decoupled from the
// run loop.
type topicHook struct {
	topic  broker.Topic
	runID  uuid.UUID
	turnID uuid.UUID
}

var _ events.Hook = &topicHook{}

func (h *topicHook) OnUserPrompt(ctx context.Context, m messages.Message[messages.UserMessage]) {
	_ = h.topic.Publish(ctx, requestEvent(m))
}

func (h *topicHook) OnAssistantChunk(ctx context.Context, m messages.Message[messages.AssistantMessage]) {
	_ = h.topic.Publish(ctx, chunkEvent(m))
}

func (h *topicHook) OnToolCallChunk(ctx context.Context, m messages.Message[messages.ToolCallMessage]) {
	_ = h.topic.Publish(ctx, chunkEvent(m))
}

func (h *topicHook) OnToolCallMessage(ctx context.Context, m messages.Message[messages.ToolCallMessage]) {
	_ = h.topic.Publish(ctx, responseEvent(m))
}

func (h *topicHook) OnToolCallResponse(ctx context.Context, m messages.Message[messages.ToolResponse]) {
	_ = h.topic.Publish(ctx, requestEvent(m))
}

func (h *topicHook) OnRetry(ctx context.Context, m messages.Message[messages.Retry]) {
	_ = h.topic.Publish(ctx, requestEvent(m))
}

func (h *topicHook) OnAssistantMessage(ctx context.Context, m messages.Message[messages.AssistantMessage]) {
	_ = h.topic.Publish(ctx, responseEvent(m))
}

func (h *topicHook) OnFinal(ctx context.Context, f events.Final) {
	_ = h.topic.Publish(ctx, f)
}

func (h *topicHook) OnError(ctx context.Context, err error) {
	if evt, isEvent := err.(events.Error); isEvent { //nolint: errorlint
		_ = h.topic.Publish(ctx, evt)
		return
	}
	_ = h.topic.Publish(ctx, events.Error{
		RunID:     h.runID,
		TurnID:    h.turnID,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	})
}

func chunkEvent[T messages.Response](m messages.Message[T]) events.Chunk[T] {
	return events.Chunk[T]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Step:      m.Step,
		Chunk:     m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

func requestEvent[T messages.Request](m messages.Message[T]) events.Request[T] {
	return events.Request[T]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Step:      m.Step,
		Message:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

func responseEvent[T messages.Response](m messages.Message[T]) events.Response[T] {
	return events.Response[T]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Step:      m.Step,
		Response:  m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}
