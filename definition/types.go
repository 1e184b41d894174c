// Package definition normalizes the module definitions exported by bundles
// into a canonical shape.
//
// Bundles export loosely shaped JSON. Components may be full descriptors
// ({name, export, description, props, emits}) or bare renderable units, and
// descriptions may be strings, author objects or author lists. The
// normalizer accepts all of these, rejects malformed entries one at a time
// with a warning, and never fails a whole module because of one entry.
package definition

import (
	"sort"

	"go.bytecodealliance.org/wit"

	distributed "github.com/wippyai/wasm-distributed"
)

// Author is a normalized author or contributor. Empty fields are nil.
type Author struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	URL   *string `json:"url"`
}

// Description is a normalized description. A missing or broken input yields
// a Description with every field nil.
type Description struct {
	Info         *string  `json:"info"`
	Authors      []Author `json:"authors"`
	Contributors []Author `json:"contributors"`
}

// Clone returns a deep copy of d.
func (d *Description) Clone() *Description {
	if d == nil {
		return nil
	}
	c := &Description{Info: d.Info}
	if d.Authors != nil {
		c.Authors = append([]Author(nil), d.Authors...)
	}
	if d.Contributors != nil {
		c.Contributors = append([]Author(nil), d.Contributors...)
	}
	return c
}

// Prop describes one component property.
type Prop struct {
	// Default is the JSON default value when HasDefault is set.
	Default any `json:"default,omitempty"`
	// WIT is the parsed type when Type names a WIT primitive.
	WIT wit.Type `json:"-"`
	// Type is the canonical WIT name, or the declared name lowercased.
	Type       string `json:"type,omitempty"`
	HasDefault bool   `json:"-"`
	Required   bool   `json:"required"`
	Validator  bool   `json:"validator,omitempty"`
}

// Component is a normalized component descriptor.
type Component struct {
	Export      *distributed.Unit
	Description *Description
	Props       map[string]Prop
	Name        string
	Emits       []string
}

// PropNames returns the property names in sorted order.
func (c *Component) PropNames() []string {
	names := make([]string, 0, len(c.Props))
	for n := range c.Props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of c that shares only the callables.
func (c Component) Clone() Component {
	out := c
	out.Export = cloneUnit(c.Export)
	out.Description = c.Description.Clone()
	if c.Props != nil {
		out.Props = make(map[string]Prop, len(c.Props))
		for k, v := range c.Props {
			out.Props[k] = v
		}
	}
	if c.Emits != nil {
		out.Emits = append([]string(nil), c.Emits...)
	}
	return out
}

// Directive is a normalized directive descriptor.
type Directive struct {
	Export      *distributed.Unit
	Description *Description
	Name        string
}

// Clone returns a copy of d that shares only the callables.
func (d Directive) Clone() Directive {
	out := d
	out.Export = cloneUnit(d.Export)
	out.Description = d.Description.Clone()
	return out
}

// Dependency is a named host dependency with an optional version constraint.
type Dependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Module is a normalized module definition.
type Module struct {
	Description  Description
	Name         string
	Version      string
	Category     string
	Components   []Component
	Directives   []Directive
	Dependencies []Dependency
	// Rejected holds one error per dropped entry.
	Rejected []error
}

func cloneUnit(u *distributed.Unit) *distributed.Unit {
	if u == nil {
		return nil
	}
	c := *u
	if u.Options != nil {
		c.Options = make(map[string]any, len(u.Options))
		for k, v := range u.Options {
			c.Options[k] = v
		}
	}
	if u.Hooks != nil {
		c.Hooks = make(map[string]distributed.Callable, len(u.Hooks))
		for k, v := range u.Hooks {
			c.Hooks[k] = v
		}
	}
	return &c
}
