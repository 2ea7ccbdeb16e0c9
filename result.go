package strix

import (
	"context"
	"sync"

	"github.com/fogfish/opts"

	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/events"
)

// Collect runs the session to completion and returns the typed outcome,
// for callers that want the result without observing the event stream.
func Collect[T any](ctx context.Context, session *Session, options ...opts.Option[ExecutionContext]) api.RunResult[T] {
	hook := &collectHook[T]{}
	if err := session.Run(ctx, Local[T](hook, options...)); err != nil {
		return api.RunResult[T]{Err: err}
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.err != nil {
		return api.RunResult[T]{Err: hook.err}
	}
	return api.RunResult[T]{Success: hook.value}
}

type collectHook[T any] struct {
	events.NoopHook
	mu    sync.Mutex
	value T
	err   error
}

func (h *collectHook[T]) OnResult(_ context.Context, value T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = value
}

func (h *collectHook[T]) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

func (h *collectHook[T]) OnClose(context.Context) {}
