/*
Package schema provides runtime output-schema descriptors and a pure,
deterministic validator over untyped JSON payloads.

Descriptors are data, not language types: they wrap a JSON schema built by
reflection (or assembled by hand) and can therefore be constructed at run
time from caller-supplied type definitions. Validation never touches the
network and has no side effects; it either accepts a payload or returns the
complete list of field-level problems, which the execution loop turns into a
repair prompt for the model.
*/
package schema
