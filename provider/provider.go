package provider

import (
	"context"

	"github.com/google/uuid"

	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/schema"
	"github.com/casualjim/strix/tool"
)

// Provider is implemented by model backends. A single call covers one model
// turn: the implementation translates the thread into its wire format, makes
// the request, and emits stream events on the returned channel until it
// closes the channel. The context bounds the whole turn; implementations
// must stop promptly when it is cancelled.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// Model pairs a model name with the provider that serves it.
type Model interface {
	Name() string
	Provider() Provider
}

// CompletionParams carries everything a backend needs for one model turn.
type CompletionParams struct {
	// RunID identifies the run this turn belongs to.
	RunID uuid.UUID

	// Instructions is the rendered system prompt for this turn.
	Instructions string

	// Thread holds the conversation history. Backends read it through
	// MessagesIter and record their own view in the response checkpoint.
	Thread *runstate.Aggregator

	// Stream requests incremental Chunk events before the final Response.
	// When false the backend emits only Delim, Response and Error events.
	Stream bool

	// ResponseSchema, when set, asks the model to produce output conforming
	// to the schema. Validation still happens in the loop; the schema here
	// is advisory for backends that support constrained decoding.
	ResponseSchema *schema.Descriptor

	// Tools lists the invocable tools by name and schema. The backend
	// forwards these so the model can request calls; it never runs them.
	Tools []tool.Definition

	// Model selects which model serves this turn.
	Model Model

	// Prevents unkeyed literals
	_ struct{}
}
