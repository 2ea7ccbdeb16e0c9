// Package types provides core type definitions shared across the strix runtime.
package types

import json "github.com/goccy/go-json"

// ContextVars is a key-value store of run-scoped variables. They are injected
// into instruction templates and into tool handlers that declare a ContextVars
// parameter, and survive across turns of a single run.
//
// ContextVars is a plain map and is not safe for concurrent modification; the
// execution loop clones it before handing it to tool handlers.
type ContextVars map[string]any

// String returns the JSON representation of the variables, or an empty string
// when marshaling fails.
func (cv ContextVars) String() string {
	data, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(data)
}
