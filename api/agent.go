// Package api holds the public contracts of the execution loop: the agent
// and model interfaces, the run result, and the error taxonomy callers
// match on.
package api

import (
	"github.com/casualjim/strix/tool"
	"github.com/casualjim/strix/types"
)

// Agent is the configuration a run executes against. Implementations are
// immutable once built; the loop only reads from them.
type Agent interface {
	// Name identifies the agent in logs and events.
	Name() string

	// Model returns the model serving this agent's completions.
	Model() Model

	// Tools returns the agent's tool catalog as definitions.
	Tools() []tool.Definition

	// ParallelToolCalls reports whether concurrency-safe tools from one
	// turn may run in parallel. When false every tool runs sequentially.
	ParallelToolCalls() bool

	// RenderInstructions produces the system prompt for a turn,
	// substituting the run's context variables into the instruction
	// template.
	RenderInstructions(types.ContextVars) (string, error)
}
