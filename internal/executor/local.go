package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/slogx"
	"github.com/casualjim/strix/provider"
	"github.com/casualjim/strix/schema"
	"github.com/casualjim/strix/types"
)

var _ Executor = &Local{}

type breakError struct{}

func (e *breakError) Error() string {
	return "break"
}

type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

type runParams struct {
	command     RunCommand
	thread      *runstate.Aggregator
	contextVars types.ContextVars
	promise     Promise
}

// Run executes the command until the model produces a terminal response or
// the run fails. The promise is resolved exactly once either way.
func (l *Local) Run(ctx context.Context, command RunCommand, promise Promise) error {
	if err := command.Validate(); err != nil {
		cfgErr := &api.ConfigurationError{Err: err}
		promise.Error(cfgErr)
		return cfgErr
	}

	thread := command.Thread.Fork()
	err := l.runLoop(ctx, &runParams{
		command:     command,
		thread:      thread,
		contextVars: command.initializeContextVars(),
		promise:     promise,
	})

	// Always join the fork back so the caller keeps the full transcript,
	// failed runs included.
	command.Thread.Join(thread)

	var breakErr *breakError
	if errors.As(err, &breakErr) {
		return nil
	}
	return err
}

func (l *Local) runLoop(ctx context.Context, params *runParams) error {
	for {
		if err := ctx.Err(); err != nil {
			return l.fail(ctx, params, &api.CancelledError{Cause: err})
		}

		step := params.thread.NextStep()
		if step > params.command.MaxSteps {
			return l.fail(ctx, params, &api.StepLimitError{Steps: params.command.MaxSteps})
		}

		outcome, err := l.modelTurn(ctx, params, step)
		if err != nil {
			return l.fail(ctx, params, err)
		}

		if outcome.sawToolCalls {
			// tool results were appended, let the model see them
			continue
		}

		if outcome.assistant == nil {
			return l.fail(ctx, params, &provider.ModelError{
				Provider: params.command.Agent.Model().Name(),
				Message:  "stream closed without a response",
			})
		}

		done, err := l.finishOrRepair(ctx, params, step, *outcome.assistant)
		if err != nil {
			return l.fail(ctx, params, err)
		}
		if done {
			return &breakError{}
		}
	}
}

// fail publishes the error, resolves the promise and returns err so the
// loop unwinds.
func (l *Local) fail(ctx context.Context, params *runParams, err error) error {
	params.command.Hook.OnError(ctx, err)
	params.promise.Error(err)
	return err
}

type turnOutcome struct {
	assistant    *messages.Message[messages.AssistantMessage]
	sawToolCalls bool
}

// modelTurn performs one model call including resends after retryable
// failures. The step counter is not consumed by resends: a retried call is
// the same step.
func (l *Local) modelTurn(ctx context.Context, params *runParams, step int) (turnOutcome, error) {
	policy := params.command.RetryPolicy
	for attempt := 0; ; attempt++ {
		outcome, err := l.attemptTurn(ctx, params, step)
		if err == nil {
			return outcome, nil
		}

		var cancelled *api.CancelledError
		if errors.As(err, &cancelled) {
			return turnOutcome{}, err
		}
		if !provider.IsRetryable(err) || attempt >= policy.MaxRetries {
			return turnOutcome{}, err
		}

		delay := policy.Delay(attempt + 1)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, delay, err)
		}
		slog.Warn("retrying model call",
			slog.Int("step", step),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slogx.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return turnOutcome{}, &api.CancelledError{Cause: ctx.Err()}
		}
	}
}

func (l *Local) attemptTurn(ctx context.Context, params *runParams, step int) (turnOutcome, error) {
	agent := params.command.Agent

	model := agent.Model()
	if model == nil {
		return turnOutcome{}, &api.ConfigurationError{Err: errors.New("agent model cannot be nil")}
	}
	prov := model.Provider()
	if prov == nil {
		return turnOutcome{}, &api.ConfigurationError{Err: errors.New("model provider cannot be nil")}
	}

	instructions, err := agent.RenderInstructions(params.contextVars)
	if err != nil {
		return turnOutcome{}, &api.ConfigurationError{Err: fmt.Errorf("failed to render instructions: %w", err)}
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if params.command.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, params.command.CallTimeout)
	}
	defer cancel()

	stream, err := prov.ChatCompletion(callCtx, provider.CompletionParams{
		RunID:          params.command.ID(),
		Instructions:   instructions,
		Thread:         params.thread,
		Stream:         params.command.Stream,
		Model:          model,
		ResponseSchema: params.command.ResponseSchema,
		Tools:          agent.Tools(),
	})
	if err != nil {
		return turnOutcome{}, err
	}

	return l.consumeStream(ctx, callCtx, stream, params, step)
}

func (l *Local) consumeStream(
	ctx, callCtx context.Context,
	stream <-chan provider.StreamEvent,
	params *runParams,
	step int,
) (turnOutcome, error) {
	var outcome turnOutcome
	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				return outcome, nil
			}
			if err := l.processStreamEvent(ctx, event, params, step, &outcome); err != nil {
				return turnOutcome{}, err
			}

		case <-callCtx.Done():
			if ctx.Err() != nil {
				return turnOutcome{}, &api.CancelledError{Cause: ctx.Err()}
			}
			return turnOutcome{}, &provider.ModelError{
				Provider:  params.command.Agent.Model().Name(),
				Message:   "model call timed out",
				Cause:     callCtx.Err(),
				Retryable: true,
			}
		}
	}
}

func (l *Local) processStreamEvent(
	ctx context.Context,
	event provider.StreamEvent,
	params *runParams,
	step int,
	outcome *turnOutcome,
) error {
	agentName := params.command.Agent.Name()

	switch event := event.(type) {
	case provider.Delim:
		return nil

	case provider.Error:
		return event.Err

	case provider.Chunk[messages.AssistantMessage]:
		var msg messages.Message[messages.AssistantMessage]
		provider.ChunkToMessage(&msg, event)
		msg.Step = step
		msg.Sender = agentName
		params.command.Hook.OnAssistantChunk(ctx, msg)
		return nil

	case provider.Chunk[messages.ToolCallMessage]:
		var msg messages.Message[messages.ToolCallMessage]
		provider.ChunkToMessage(&msg, event)
		msg.Step = step
		msg.Sender = agentName
		params.command.Hook.OnToolCallChunk(ctx, msg)
		return nil

	case provider.Response[messages.ToolCallMessage]:
		outcome.sawToolCalls = true
		return l.handleToolCallResponse(ctx, event, params, step)

	case provider.Response[messages.AssistantMessage]:
		event.Checkpoint.MergeInto(params.thread)

		var msg messages.Message[messages.AssistantMessage]
		provider.ResponseToMessage(&msg, event)
		msg.Step = step
		msg.Sender = agentName
		params.thread.AddAssistantMessage(msg)
		params.command.Hook.OnAssistantMessage(ctx, msg)
		outcome.assistant = &msg
		return nil

	default:
		panic(fmt.Sprintf("unknown event type %T", event))
	}
}

func (l *Local) handleToolCallResponse(
	ctx context.Context,
	event provider.Response[messages.ToolCallMessage],
	params *runParams,
	step int,
) error {
	forked := params.thread.Fork()
	event.Checkpoint.MergeInto(forked)

	var toolCallMsg messages.Message[messages.ToolCallMessage]
	provider.ResponseToMessage(&toolCallMsg, event)
	toolCallMsg.Step = step
	toolCallMsg.Sender = params.command.Agent.Name()
	forked.AddToolCall(toolCallMsg)
	params.command.Hook.OnToolCallMessage(ctx, toolCallMsg)

	if params.contextVars == nil {
		params.contextVars = make(types.ContextVars)
	}

	err := l.dispatchToolCalls(ctx, dispatchParams{
		runID:       params.command.ID(),
		agent:       params.command.Agent,
		contextVars: params.contextVars,
		mem:         forked,
		hook:        params.command.Hook,
		toolCalls:   event.Response,
		step:        step,
		concurrency: params.command.ToolConcurrency,
	})
	if err != nil {
		return err
	}

	params.thread.Join(forked)
	return nil
}

// finishOrRepair decides whether the assistant's terminal output completes
// the run. Without a schema any content is final. With one, the output must
// contain a JSON document that validates; otherwise the model is asked to
// repair it, bounded by the validation-retry budget.
func (l *Local) finishOrRepair(
	ctx context.Context,
	params *runParams,
	step int,
	msg messages.Message[messages.AssistantMessage],
) (bool, error) {
	command := params.command

	if command.ResponseSchema == nil {
		l.complete(ctx, params, step, msg.Payload.Content)
		return true, nil
	}

	document, err := schema.Coerce(msg.Payload.Content)
	var fields []schema.FieldError
	if err != nil {
		fields = []schema.FieldError{{Message: err.Error()}}
	} else if verr := command.ResponseSchema.Validate(document); verr != nil {
		var validation *schema.ValidationError
		if !errors.As(verr, &validation) {
			return false, verr
		}
		fields = validation.Fields
	}

	if len(fields) == 0 {
		l.complete(ctx, params, step, string(document))
		return true, nil
	}

	retry := params.thread.NextRetry()
	if retry > command.MaxValidationRetries {
		return false, &api.ValidationExhaustedError{Attempts: retry, Fields: fields}
	}

	reason := (&schema.ValidationError{Fields: fields}).Summary()
	repair := messages.New().
		WithRunID(command.ID()).
		WithTurnID(params.thread.ID()).
		WithStep(step).
		WithSender(command.Agent.Name()).
		Retry(reason)
	params.thread.AddRetry(repair)
	params.command.Hook.OnRetry(ctx, repair)

	slog.Debug("terminal output failed validation, asking for repair",
		slog.Int("step", step),
		slog.Int("attempt", retry),
		slog.String("reason", reason))
	return false, nil
}

func (l *Local) complete(ctx context.Context, params *runParams, step int, content string) {
	params.promise.Complete(content)
	params.command.Hook.OnFinal(ctx, events.Final{
		RunID:     params.command.ID(),
		TurnID:    params.thread.ID(),
		Steps:     step,
		Content:   content,
		Sender:    params.command.Agent.Name(),
		Timestamp: strfmt.DateTime(time.Now()),
	})
}
