package executor

import (
	"context"
	"encoding"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
	"github.com/casualjim/strix/pkg/reflectx"
	"github.com/casualjim/strix/pkg/slogx"
	"github.com/casualjim/strix/schema"
	"github.com/casualjim/strix/tool"
	"github.com/casualjim/strix/types"
)

// DefaultToolTimeout bounds a tool invocation that does not declare its
// own timeout.
const DefaultToolTimeout = 30 * time.Second

type dispatchParams struct {
	runID       uuid.UUID
	agent       api.Agent
	contextVars types.ContextVars
	mem         *runstate.Aggregator
	hook        events.Hook
	toolCalls   messages.ToolCallMessage
	step        int
	concurrency int
}

// toolOutcome is the settled result of one tool call: either content for a
// ToolResponse or a failure that becomes a Retry descriptor.
type toolOutcome struct {
	call    messages.ToolCallData
	content string
	vars    types.ContextVars
	failure error
}

// dispatchToolCalls executes every call of one model turn and appends the
// results to the thread in request order. Tool failures are not run
// failures: they settle into Retry descriptors the model sees on its next
// turn. Only an unknown tool name aborts the run, because it means the
// conversation and the configuration disagree about the catalog.
func (l *Local) dispatchToolCalls(ctx context.Context, params dispatchParams) error {
	agentTools := make(map[string]tool.Definition, len(params.agent.Tools()))
	for def := range slices.Values(params.agent.Tools()) {
		agentTools[def.Name] = def
	}

	calls := params.toolCalls.ToolCalls
	defs := make([]tool.Definition, len(calls))
	for i, call := range calls {
		def, exists := agentTools[call.Name]
		if !exists {
			return &api.UnknownToolError{Name: call.Name}
		}
		defs[i] = def
	}

	outcomes := make([]toolOutcome, len(calls))

	var parallel, sequential []int
	for i, def := range defs {
		if def.ConcurrencySafe && params.agent.ParallelToolCalls() && len(calls) > 1 {
			parallel = append(parallel, i)
		} else {
			sequential = append(sequential, i)
		}
	}

	var varsMu sync.Mutex
	runOne := func(i int) {
		outcomes[i] = l.runToolCall(ctx, defs[i], calls[i], func() types.ContextVars {
			varsMu.Lock()
			defer varsMu.Unlock()
			return maps.Clone(params.contextVars)
		})
	}

	if len(parallel) > 0 {
		var group errgroup.Group
		if params.concurrency > 0 {
			group.SetLimit(params.concurrency)
		}
		for _, i := range parallel {
			group.Go(func() error {
				runOne(i)
				return nil
			})
		}
		// outcomes settle even when some calls fail
		_ = group.Wait()
	}

	for _, i := range sequential {
		// sequential tools observe context updates from earlier calls
		l.mergeVars(&varsMu, params.contextVars, outcomes[:i])
		runOne(i)
	}

	// commit in request order so the transcript mirrors the model's turn
	for i, outcome := range outcomes {
		if outcome.vars != nil {
			varsMu.Lock()
			maps.Copy(params.contextVars, outcome.vars)
			varsMu.Unlock()
		}

		builder := messages.New().
			WithRunID(params.runID).
			WithTurnID(params.mem.ID()).
			WithStep(params.step).
			WithSender(params.agent.Name())

		if outcome.failure != nil {
			slog.Debug("tool call failed",
				slog.String("tool", calls[i].Name),
				slog.String("call_id", calls[i].ID),
				slogx.Error(outcome.failure))
			msg := builder.ToolRetry(outcome.call.ID, outcome.call.Name, outcome.failure.Error())
			params.mem.AddRetry(msg)
			params.hook.OnRetry(ctx, msg)
			continue
		}

		msg := builder.ToolResponse(outcome.call.ID, outcome.call.Name, outcome.content)
		params.mem.AddToolResponse(msg)
		params.hook.OnToolCallResponse(ctx, msg)
	}

	return nil
}

func (l *Local) mergeVars(mu *sync.Mutex, into types.ContextVars, settled []toolOutcome) {
	mu.Lock()
	defer mu.Unlock()
	for _, outcome := range settled {
		if outcome.vars != nil {
			maps.Copy(into, outcome.vars)
		}
	}
}

// runToolCall validates the call's arguments against the tool's schema and
// invokes the function with a per-call timeout. It never returns control
// flow errors; everything settles into the outcome.
func (l *Local) runToolCall(
	ctx context.Context,
	def tool.Definition,
	call messages.ToolCallData,
	snapshotVars func() types.ContextVars,
) toolOutcome {
	outcome := toolOutcome{call: call}

	if fields := validateArguments(def, call.Arguments); len(fields) > 0 {
		outcome.failure = &api.ToolArgumentError{Tool: call.Name, CallID: call.ID, Fields: fields}
		return outcome
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	type invocation struct {
		result toolResult
		err    error
	}
	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		args := buildArgList(call.Arguments, def.Parameters)
		result, err := callFunction(def.Function, args, snapshotVars())
		done <- invocation{result: result, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case inv := <-done:
		if inv.err != nil {
			outcome.failure = &api.ToolExecutionError{Tool: call.Name, CallID: call.ID, Cause: inv.err}
			return outcome
		}
		outcome.content = inv.result.Value
		outcome.vars = inv.result.ContextVariables
		return outcome

	case <-timer.C:
		outcome.failure = &api.ToolExecutionError{
			Tool: call.Name, CallID: call.ID,
			Cause:   fmt.Errorf("no result within %s", timeout),
			Timeout: true,
		}
		return outcome

	case <-ctx.Done():
		outcome.failure = &api.ToolExecutionError{Tool: call.Name, CallID: call.ID, Cause: ctx.Err()}
		return outcome
	}
}

// validateArguments checks the call's JSON arguments against the schema
// derived from the function signature.
func validateArguments(def tool.Definition, arguments string) []schema.FieldError {
	doc := strings.TrimSpace(arguments)
	if doc == "" {
		doc = "{}"
	}
	if !gjson.Valid(doc) {
		return []schema.FieldError{{Message: "arguments are not a valid JSON document"}}
	}
	_, paramSchema := def.ToNameAndSchema()
	return schema.Check(paramSchema, gjson.Parse(doc))
}

func buildArgList(arguments string, parameters map[string]string) []reflect.Value {
	args := gjson.Parse(arguments)
	targs := make([]string, len(parameters))
	for k, v := range parameters {
		ns := strings.TrimPrefix(k, "param")
		i, _ := strconv.Atoi(ns)
		if i < 0 || i >= len(targs) {
			continue
		}
		targs[i] = v
	}

	toolArgs := make([]reflect.Value, 0)
	for _, arg := range targs {
		if arg == "" {
			continue
		}

		val := args.Get(arg)
		if !val.Exists() {
			continue
		}

		toolArgs = append(toolArgs, reflect.ValueOf(val.Value()))
	}
	return toolArgs
}

type toolResult struct {
	Value            string
	ContextVariables types.ContextVars
}

func callFunction(fn any, args []reflect.Value, contextVars types.ContextVars) (toolResult, error) {
	val := reflect.ValueOf(fn)
	vtpe := val.Type()

	numIn := vtpe.NumIn()
	callArgs := make([]reflect.Value, numIn)

	argIdx := 0
	for fi := 0; fi < numIn; fi++ {
		paramType := vtpe.In(fi)
		if reflectx.IsRefinedType[types.ContextVars](paramType) {
			callArgs[fi] = reflect.ValueOf(contextVars)
			continue
		}
		if argIdx < len(args) {
			vv := args[argIdx]
			if vv.Type().ConvertibleTo(paramType) {
				callArgs[fi] = vv.Convert(paramType)
			} else {
				callArgs[fi] = reflect.Zero(paramType)
			}
			argIdx++
		} else {
			callArgs[fi] = reflect.Zero(paramType)
		}
	}

	results := val.Call(callArgs)
	if len(results) == 0 {
		return toolResult{}, nil
	}

	// a trailing error return fails the call regardless of the first value
	if last := results[len(results)-1]; last.IsValid() {
		if err, ok := last.Interface().(error); ok && err != nil {
			return toolResult{}, err
		}
	}

	res := results[0]
	if !res.IsValid() {
		return toolResult{}, nil
	}

	switch rv := res.Interface().(type) {
	case nil:
		return toolResult{}, nil
	case error:
		return toolResult{}, rv
	case types.ContextVars:
		return toolResult{Value: "", ContextVariables: rv}, nil
	case string:
		return toolResult{Value: rv}, nil
	case time.Time:
		return toolResult{Value: rv.Format(time.RFC3339)}, nil
	case strfmt.DateTime:
		return toolResult{Value: rv.String()}, nil
	case int, int8, int16, int32, int64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatInt(val.Int(), 10)}, nil
	case uint, uint8, uint16, uint32, uint64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatUint(val.Uint(), 10)}, nil
	case float32, float64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatFloat(val.Float(), 'f', -1, 64)}, nil
	case encoding.TextMarshaler:
		b, err := rv.MarshalText()
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	case fmt.Stringer:
		return toolResult{Value: rv.String()}, nil
	default:
		b, err := json.Marshal(rv)
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	}
}
