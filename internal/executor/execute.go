package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/pkg/uuidx"
	"github.com/casualjim/strix/provider"
	"github.com/casualjim/strix/schema"
	"github.com/casualjim/strix/tool"
	"github.com/casualjim/strix/types"
)

const (
	// DefaultMaxSteps bounds the number of model calls per run.
	DefaultMaxSteps = 10
	// DefaultMaxValidationRetries bounds schema repair attempts.
	DefaultMaxValidationRetries = 2
	// DefaultCallTimeout bounds a single model call.
	DefaultCallTimeout = 2 * time.Minute
	// DefaultToolConcurrency bounds parallel tool dispatch.
	DefaultToolConcurrency = 8
)

// NewRunCommand assembles a run with default budgets.
func NewRunCommand(agent api.Agent, thread *runstate.Aggregator, hook events.Hook) (RunCommand, error) {
	var err error
	if agent == nil {
		err = errors.Join(err, errors.New("agent is required"))
	}
	if thread == nil {
		err = errors.Join(err, errors.New("thread is required"))
	}
	if hook == nil {
		err = errors.Join(err, errors.New("hook is required"))
	}
	if err != nil {
		return RunCommand{}, err
	}

	return RunCommand{
		id:                   uuidx.New(),
		Agent:                agent,
		Thread:               thread,
		Hook:                 hook,
		MaxSteps:             DefaultMaxSteps,
		MaxValidationRetries: DefaultMaxValidationRetries,
		CallTimeout:          DefaultCallTimeout,
		ToolConcurrency:      DefaultToolConcurrency,
		RetryPolicy:          provider.DefaultRetryPolicy(),
	}, nil
}

// RunCommand is one run of the state machine: the agent to execute, the
// thread to execute against, and the budgets that bound the run.
type RunCommand struct {
	id               uuid.UUID
	Agent            api.Agent
	Thread           *runstate.Aggregator
	Hook             events.Hook
	ResponseSchema   *schema.Descriptor
	Stream           bool
	ContextVariables types.ContextVars

	// MaxSteps is the model-call budget. When a run would exceed it the
	// run fails with api.StepLimitError.
	MaxSteps int

	// MaxValidationRetries is the number of repair prompts sent after
	// invalid terminal output before the run fails with
	// api.ValidationExhaustedError.
	MaxValidationRetries int

	// CallTimeout bounds each individual model call.
	CallTimeout time.Duration

	// ToolConcurrency caps how many concurrency-safe tools run at once.
	ToolConcurrency int

	// RetryPolicy governs resends after retryable model errors.
	RetryPolicy provider.RetryPolicy
}

func (r *RunCommand) Validate() error {
	if r.Agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	if r.Thread == nil {
		return fmt.Errorf("thread cannot be nil")
	}
	if r.Hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if r.MaxSteps < 1 {
		return fmt.Errorf("max steps must be positive")
	}
	if r.MaxValidationRetries < 0 {
		return fmt.Errorf("max validation retries cannot be negative")
	}
	seen := make(map[string]struct{}, len(r.Agent.Tools()))
	for _, def := range r.Agent.Tools() {
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("%w: %q", tool.ErrDuplicateTool, def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return nil
}

func (r *RunCommand) initializeContextVars() types.ContextVars {
	if r.ContextVariables != nil {
		return maps.Clone(r.ContextVariables)
	}
	return nil
}

func (r *RunCommand) ID() uuid.UUID {
	return r.id
}

func (r RunCommand) WithStream(stream bool) RunCommand {
	r.Stream = stream
	return r
}

func (r RunCommand) WithMaxSteps(maxSteps int) RunCommand {
	r.MaxSteps = maxSteps
	return r
}

func (r RunCommand) WithMaxValidationRetries(retries int) RunCommand {
	r.MaxValidationRetries = retries
	return r
}

func (r RunCommand) WithCallTimeout(timeout time.Duration) RunCommand {
	r.CallTimeout = timeout
	return r
}

func (r RunCommand) WithToolConcurrency(concurrency int) RunCommand {
	r.ToolConcurrency = concurrency
	return r
}

func (r RunCommand) WithContextVariables(contextVariables types.ContextVars) RunCommand {
	r.ContextVariables = contextVariables
	return r
}

func (r RunCommand) WithResponseSchema(descriptor *schema.Descriptor) RunCommand {
	r.ResponseSchema = descriptor
	return r
}

func (r RunCommand) WithRetryPolicy(policy provider.RetryPolicy) RunCommand {
	r.RetryPolicy = policy
	return r
}

// DefaultUnmarshal picks the decoding strategy for a result type: strings
// pass through, gjson documents are parsed, everything else goes through
// JSON unmarshaling.
func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return func(data []byte) (T, error) {
			return any(gjson.ParseBytes(data)).(T), nil
		}
	}
	if reflect.TypeFor[T]().Kind() == reflect.String {
		return func(data []byte) (T, error) {
			return any(string(data)).(T), nil
		}
	}
	return func(data []byte) (T, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// Promise is the write side of a run outcome.
type Promise interface {
	Complete(string)
	Error(error)
}

// Future is the read side of a run outcome.
type Future[T any] interface {
	Get() (T, error)
}

type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

type future[T any] struct {
	unmarshal func([]byte) (T, error)
	done      chan struct{}
	resolve   sync.Once
	value     string
	err       error

	decode    sync.Once
	result    T
	resultErr error
}

// NewFuture creates a completable future that decodes the raw terminal
// payload with the given unmarshal function. Only the first resolution
// wins; later calls are no-ops.
func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	return &future[T]{
		unmarshal: unmarshal,
		done:      make(chan struct{}),
	}
}

func (f *future[T]) Get() (T, error) {
	<-f.done
	f.decode.Do(func() {
		if f.err != nil {
			f.resultErr = f.err
			return
		}
		f.result, f.resultErr = f.unmarshal([]byte(f.value))
	})
	return f.result, f.resultErr
}

func (f *future[T]) Complete(data string) {
	f.resolve.Do(func() {
		f.value = data
		close(f.done)
	})
}

func (f *future[T]) Error(err error) {
	f.resolve.Do(func() {
		f.err = err
		close(f.done)
	})
}

type noopPromise struct{}

func (noopPromise) Complete(string) {}
func (noopPromise) Error(error)     {}

// Executor runs commands to completion.
type Executor interface {
	Run(context.Context, RunCommand, Promise) error
}
