package tool

import (
	"fmt"
	"slices"
	"strings"

	"github.com/casualjim/strix/internal/registry"
)

// Catalog is a named set of tool definitions with unique names. The zero
// value is not usable; create one with NewCatalog.
type Catalog struct {
	tools registry.Registry[Definition]
	names []string
}

// ErrDuplicateTool is wrapped by the error NewCatalog returns when two
// definitions share a name.
var ErrDuplicateTool = fmt.Errorf("duplicate tool name")

// NewCatalog builds a catalog from the given definitions. Registration
// fails when two definitions share a name; the model identifies tools by
// name alone, so ambiguity here would make dispatch a coin toss.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		tools: registry.New[Definition](),
		names: make([]string, 0, len(defs)),
	}
	for _, def := range defs {
		name := def.Name
		if name == "" {
			return nil, fmt.Errorf("tool definition without a name")
		}
		if !c.tools.TryAdd(name, def) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, name)
		}
		c.names = append(c.names, name)
	}
	return c, nil
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	return c.tools.Get(name)
}

// Definitions returns the registered definitions in registration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.names))
	for _, name := range c.names {
		if def, ok := c.tools.Get(name); ok {
			out = append(out, def)
		}
	}
	return out
}

// Names returns the registered tool names in registration order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	return c.tools.Len()
}

func (c *Catalog) String() string {
	return "tools(" + strings.Join(c.names, ", ") + ")"
}
