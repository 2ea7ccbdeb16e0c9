package tool

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/strix/pkg/reflectx"
	"github.com/casualjim/strix/pkg/stdx"
	"github.com/casualjim/strix/types"
)

// Definition describes one invocable tool.
type Definition struct {
	// Name is the identifier the model uses to request this tool.
	Name string

	// Description tells the model what the tool does.
	Description string

	// Parameters maps positional parameter slots ("param0", "param1") to
	// the names exposed in the schema.
	Parameters map[string]string

	// Function is the Go function to invoke. Its arguments are bound from
	// the model's JSON arguments in declaration order; a types.ContextVars
	// parameter is skipped during binding and filled from the run's
	// context variables instead.
	Function any

	// ConcurrencySafe marks the tool as safe to run in parallel with other
	// tools of the same turn. Unsafe tools run sequentially in request
	// order.
	ConcurrencySafe bool

	// Timeout bounds a single invocation. Zero means the dispatcher's
	// default applies.
	Timeout time.Duration
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema derives the wire name and JSON schema for the tool's
// parameters from the function signature.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, td)
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	val := reflect.ValueOf(f.Function)
	typ := val.Type()

	name := f.Name
	if name == "" && typ.Kind() == reflect.Func {
		if typ.Name() != "" {
			name = typ.String()
		} else if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
			name = fn.Name()
			if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
				name = name[lastDot+1:]
			}
		} else {
			name = typ.String()
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	if typ.Kind() == reflect.Func {
		numIn := typ.NumIn()
		startIdx := 0
		// skip the receiver for methods
		if numIn > 0 && typ.In(0).Kind() == reflect.Struct {
			startIdx = 1
		}

		var required []string
		// slot counts only the model-visible parameters, so ContextVars
		// arguments don't shift the param0..paramN mapping
		slot := 0
		for i := startIdx; i < numIn; i++ {
			paramType := typ.In(i)
			if reflectx.IsRefinedType[types.ContextVars](paramType) {
				continue
			}

			paramName := fmt.Sprintf("param%d", slot)
			slot++
			if f.Parameters != nil {
				if p, ok := f.Parameters[paramName]; ok {
					paramName = p
				}
			}

			propSchema := reflector.ReflectFromType(paramType)
			propSchema.Version = ""
			schema.Properties.Set(paramName, propSchema)
			required = append(required, paramName)
		}
		if len(required) > 0 {
			schema.Required = required
		}
	}

	return name, schema
}

// Option configures a tool definition.
type Option = opts.Option[Definition]

// New creates a tool definition from the provided function and options.
// The function's name is used when no Name option is given.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Must is New that panics on error.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// Name sets the tool's wire name.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the tool's description.
var Description = opts.ForName[Definition, string]("Description")

// ConcurrencySafe marks the tool as safe for parallel dispatch.
var ConcurrencySafe = opts.ForName[Definition, bool]("ConcurrencySafe")

// Timeout bounds a single invocation of the tool.
var Timeout = opts.ForName[Definition, time.Duration]("Timeout")

// Parameters names the function's positional parameters in order.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
