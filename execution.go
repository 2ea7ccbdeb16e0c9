// Package strix runs conversations between a caller and a model-backed
// agent. A session owns a single agent and prompt; running it drives the
// execution loop in internal/executor, fans the resulting events out
// through a broker, and resolves a typed future with the terminal value.
//
// Key concepts:
//   - Session: an agent plus the prompt to run it with
//   - ExecutionContext: execution configuration, hooks and promises
//   - Hook: typed observer for run events and the final result
//   - StructuredOutput: schema-validated responses decoded into Go types
package strix

import (
	"context"
	"reflect"
	"time"

	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/executor"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/provider"
	"github.com/casualjim/strix/schema"
	"github.com/casualjim/strix/types"
)

// ExecutionContext holds the configuration and state for executing a run.
// It bundles the executor, the caller's hook, the promise that resolves the
// typed result, and the budgets applied to the run command.
//
// An ExecutionContext belongs to a single Session.Run call and must not be
// shared across concurrent runs.
type ExecutionContext struct {
	executor             executor.Executor
	hook                 events.Hook
	promise              executor.Promise
	responseSchema       *schema.Descriptor
	contextVars          types.ContextVars
	onClose              func(context.Context)
	retryPolicy          *provider.RetryPolicy
	stream               bool
	maxSteps             int
	maxValidationRetries int
	callTimeout          time.Duration
	toolConcurrency      int
}

// createCommand builds the run command for the given agent and thread,
// applying the context's budgets and response schema. The hook argument is
// the one the executor reports to, which is not necessarily the caller's
// hook: Session.Run passes a bridge that publishes to the event broker.
func (e *ExecutionContext) createCommand(agent api.Agent, thread *runstate.Aggregator, hook events.Hook) (executor.RunCommand, error) {
	cmd, err := executor.NewRunCommand(agent, thread, hook)
	if err != nil {
		return executor.RunCommand{}, err
	}
	if len(e.contextVars) > 0 {
		cmd = cmd.WithContextVariables(e.contextVars)
	}
	if e.responseSchema != nil {
		cmd = cmd.WithResponseSchema(e.responseSchema)
	}
	if e.stream {
		cmd = cmd.WithStream(e.stream)
	}
	if e.maxSteps > 0 {
		cmd = cmd.WithMaxSteps(e.maxSteps)
	}
	if e.maxValidationRetries >= 0 {
		cmd = cmd.WithMaxValidationRetries(e.maxValidationRetries)
	}
	if e.callTimeout > 0 {
		cmd = cmd.WithCallTimeout(e.callTimeout)
	}
	if e.toolConcurrency > 0 {
		cmd = cmd.WithToolConcurrency(e.toolConcurrency)
	}
	if e.retryPolicy != nil {
		cmd = cmd.WithRetryPolicy(*e.retryPolicy)
	}
	return cmd, nil
}

type Future[T any] interface {
	// can't type alias this (yet) because of the type parameter

	Get() (T, error)
}

var (
	// WithContextVars sets the variables made available to tool handlers
	// and instruction templates during the run.
	WithContextVars = opts.ForName[ExecutionContext, types.ContextVars]("contextVars")

	// Streaming enables incremental chunk events while the model responds.
	Streaming = opts.ForName[ExecutionContext, bool]("stream")

	// WithMaxSteps caps how many model calls the run may make.
	WithMaxSteps = opts.ForName[ExecutionContext, int]("maxSteps")

	// WithMaxValidationRetries caps how many repair rounds a structured
	// response gets before the run fails.
	WithMaxValidationRetries = opts.ForName[ExecutionContext, int]("maxValidationRetries")

	// WithCallTimeout bounds each individual model call.
	WithCallTimeout = opts.ForName[ExecutionContext, time.Duration]("callTimeout")

	// WithToolConcurrency bounds how many concurrency-safe tools run at once.
	WithToolConcurrency = opts.ForName[ExecutionContext, int]("toolConcurrency")
)

// WithRetryPolicy replaces the backoff policy used when the model returns
// retryable errors.
func WithRetryPolicy(policy provider.RetryPolicy) opts.Option[ExecutionContext] {
	return opts.Type[ExecutionContext](func(e *ExecutionContext) error {
		e.retryPolicy = &policy
		return nil
	})
}

// jsonSchema builds a schema descriptor for T unless T is a string or a
// gjson.Result, which take the response as-is.
func jsonSchema[T any](name, description string) *schema.Descriptor {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return nil
	}
	if reflect.TypeFor[T]().Kind() == reflect.String {
		return nil
	}
	return schema.For[T](name, description)
}

// StructuredOutput declares that responses must follow the JSON schema
// derived from T. The terminal assistant message is validated (and repaired
// through bounded retries) before the run resolves.
func StructuredOutput[T any](name, description string) opts.Option[ExecutionContext] {
	return opts.Type[ExecutionContext](func(s *ExecutionContext) error {
		if descriptor := jsonSchema[T](name, description); descriptor != nil {
			s.responseSchema = descriptor
		}
		return nil
	})
}

// Local creates an ExecutionContext backed by the in-process executor.
// The hook receives run events plus the decoded result of type T.
// Environment variables (STRIX_MAX_STEPS and friends) provide defaults for
// the budgets; options override them.
func Local[T any](hook Hook[T], options ...opts.Option[ExecutionContext]) ExecutionContext {
	cfg, err := ConfigFromEnv()
	if err != nil {
		panic(err)
	}

	fut := executor.NewFuture(executor.DefaultUnmarshal[T]())
	dp := &deferredPromise[T]{
		promise: fut,
		hook:    hook,
	}

	execCtx := ExecutionContext{
		executor:             executor.NewLocal(),
		hook:                 hook,
		promise:              dp,
		maxSteps:             cfg.MaxSteps,
		maxValidationRetries: cfg.MaxValidationRetries,
		callTimeout:          cfg.CallTimeout,
		toolConcurrency:      cfg.ToolConcurrency,
		onClose: func(ctx context.Context) {
			dp.Forward(ctx)
			hook.OnClose(ctx)
		},
	}

	if err := opts.Apply(&execCtx, options); err != nil {
		panic(err)
	}

	return execCtx
}
