// Package events carries the observable side of a run: everything the
// execution loop does is mirrored as an event so observers can follow along
// without participating in control flow.
//
// The event union builds on the provider package's stream events, adding
// sender tracking and the step counter of the turn that produced each
// event:
//
//   - Delim: stream boundary markers
//   - Chunk[T]: incremental response fragments while streaming
//   - Request[T]: messages flowing toward the model (user prompts, tool
//     results, failure descriptors)
//   - Response[T]: completed model turns
//   - Final: the terminal payload of a finished run
//   - Error: failures, carrying the normalized error
//
// Consumers receive events either directly through a Hook or through a
// broker topic after JSON serialization with ToJSON/FromJSON. Event
// delivery is advisory: a slow or failing observer never blocks or fails
// the run.
package events
