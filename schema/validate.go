package schema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// Validate checks data against the descriptor's schema. It returns nil when
// the payload conforms, and a *ValidationError listing every field-level
// problem otherwise. Validation is pure: no side effects, no network.
func (d *Descriptor) Validate(data []byte) error {
	if !gjson.ValidBytes(data) {
		return &ValidationError{Fields: []FieldError{{Message: "invalid JSON document"}}}
	}
	if fields := Check(d.Schema, gjson.ParseBytes(data)); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Check walks a JSON schema against a parsed value and collects field
// errors. It understands the subset of JSON schema the reflector emits:
// object/array/string/integer/number/boolean/null types, required
// properties, closed objects, nested items, and enums.
func Check(s *jsonschema.Schema, value gjson.Result) []FieldError {
	var fields []FieldError
	walk(s, value, "", &fields)
	return fields
}

func walk(s *jsonschema.Schema, value gjson.Result, path string, errs *[]FieldError) {
	if s == nil || !value.Exists() {
		return
	}

	switch s.Type {
	case "object":
		walkObject(s, value, path, errs)
	case "array":
		if !value.IsArray() {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("array", value)})
			return
		}
		for i, el := range value.Array() {
			walk(s.Items, el, joinPath(path, strconv.Itoa(i)), errs)
		}
	case "string":
		if value.Type != gjson.String {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("string", value)})
		}
	case "integer":
		if value.Type != gjson.Number || value.Num != math.Trunc(value.Num) {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("integer", value)})
		}
	case "number":
		if value.Type != gjson.Number {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("number", value)})
		}
	case "boolean":
		if value.Type != gjson.True && value.Type != gjson.False {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("boolean", value)})
		}
	case "null":
		if value.Type != gjson.Null {
			*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("null", value)})
		}
	}

	if len(s.Enum) > 0 && !enumAllows(s.Enum, value) {
		*errs = append(*errs, FieldError{Path: path, Message: fmt.Sprintf("value %s is not one of the allowed values", value.Raw)})
	}
}

func walkObject(s *jsonschema.Schema, value gjson.Result, path string, errs *[]FieldError) {
	if !value.IsObject() {
		*errs = append(*errs, FieldError{Path: path, Message: describeMismatch("object", value)})
		return
	}

	members := value.Map()

	for _, required := range s.Required {
		if _, ok := members[required]; !ok {
			*errs = append(*errs, FieldError{Path: joinPath(path, required), Message: "missing required field"})
		}
	}

	if s.Properties == nil {
		return
	}

	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		if member, ok := members[pair.Key]; ok {
			walk(pair.Value, member, joinPath(path, pair.Key), errs)
		}
	}

	if s.AdditionalProperties == jsonschema.FalseSchema {
		for key := range members {
			if _, ok := s.Properties.Get(key); !ok {
				*errs = append(*errs, FieldError{Path: joinPath(path, key), Message: "unexpected field"})
			}
		}
	}
}

func enumAllows(allowed []any, value gjson.Result) bool {
	for _, candidate := range allowed {
		if fmt.Sprint(candidate) == fmt.Sprint(value.Value()) {
			return true
		}
	}
	return false
}

func describeMismatch(want string, value gjson.Result) string {
	return fmt.Sprintf("expected %s, got %s", want, typeName(value))
}

func typeName(value gjson.Result) string {
	switch value.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		if value.IsArray() {
			return "array"
		}
		if value.IsObject() {
			return "object"
		}
		return "unknown"
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
