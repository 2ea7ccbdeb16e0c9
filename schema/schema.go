package schema

import "github.com/invopop/jsonschema"

// Structured output uses a subset of JSON schema. These reflector settings
// keep the generated schemas inside that subset.
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// Descriptor declares the shape a terminal model response must conform to.
type Descriptor struct {
	// Name identifies this output format to the model provider.
	Name string

	// Description explains the format's purpose.
	Description string

	// Schema is the JSON structure responses must follow.
	Schema *jsonschema.Schema
}

// For builds a descriptor for the Go type T by reflection.
func For[T any](name, description string) *Descriptor {
	var v T
	s := reflector.Reflect(v)
	s.Version = ""
	return &Descriptor{
		Name:        name,
		Description: description,
		Schema:      s,
	}
}
