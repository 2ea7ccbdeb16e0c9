// Package provider defines the seam between the execution loop and
// generative model backends.
//
// A Provider accepts a completion request built from the conversation
// thread and answers with a channel of stream events. The event union is
// the only vocabulary a backend speaks to the loop:
//
//   - Delim marks stream boundaries ("start", "end")
//   - Chunk carries incremental deltas while streaming is enabled
//   - Response carries a finished assistant turn, either content or tool
//     calls, together with a checkpoint of the provider's view of the
//     thread
//   - Error carries a failure translated into the normalized error type
//
// Backends never see tool implementations and never dispatch tools; they
// only receive tool schemas so the model can request invocations. The loop
// owns everything that happens after an event is received.
package provider
