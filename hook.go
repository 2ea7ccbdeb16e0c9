package strix

import (
	"context"

	"github.com/casualjim/strix/events"
)

// Hook extends the event hook with typed result delivery. OnResult fires
// once with the decoded terminal value when the run succeeds; OnClose fires
// when the execution context is torn down, success or not.
type Hook[T any] interface {
	events.Hook
	OnResult(context.Context, T)
	OnClose(context.Context)
}
