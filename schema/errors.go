package schema

import (
	"fmt"
	"strings"
)

// FieldError describes one problem found while validating a payload.
type FieldError struct {
	// Path locates the offending value, e.g. "answer" or "items.2.name".
	// An empty path refers to the document root.
	Path string

	// Message says what is wrong with the value.
	Message string
}

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Message)
}

// ValidationError is the full list of field errors for one payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Summary())
}

// Summary renders the field errors as a single line, suitable for a repair
// prompt asking the model to fix its own output.
func (e *ValidationError) Summary() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}
