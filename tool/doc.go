// Package tool turns plain Go functions into invocable tool definitions.
//
// A definition carries the metadata the model needs to request a call (name,
// description, parameter schema derived by reflection) and the metadata the
// dispatcher needs to run one (the function itself, whether it is safe to
// run concurrently with other tools, and an optional per-call timeout).
//
// Definitions are grouped into a Catalog, which enforces unique names at
// setup time and answers lookups during dispatch.
package tool
