// Package executor drives the conversation state machine of a run.
//
// A run starts from a user prompt and repeats model turns until the model
// answers with a terminal response, a budget is exhausted, or the context
// is cancelled. Each turn the executor renders instructions, asks the
// provider for a completion, and acts on the resulting stream: tool calls
// are dispatched (concurrently where safe) and their results appended to
// the thread, terminal output is validated against the declared schema
// with bounded repair retries, and every state change is mirrored to the
// run's hook.
//
// The executor owns the thread for the duration of the run. It works on a
// fork and joins the accumulated messages back when the run ends, so a
// failed run still leaves the caller's thread consistent.
package executor
