package definition

import (
	distributed "github.com/wippyai/wasm-distributed"
)

// FuncSource resolves exported functions of a loaded bundle.
type FuncSource interface {
	Func(name string) (distributed.Callable, bool)
}

// Kind tags the shape of a component entry.
type Kind int

const (
	// Malformed entries are neither descriptors nor renderable units.
	Malformed Kind = iota
	// Descriptor entries carry a string name and a renderable export.
	Descriptor
	// BareUnit entries are renderable units whose name is read from the unit.
	BareUnit
)

func (k Kind) String() string {
	switch k {
	case Descriptor:
		return "descriptor"
	case BareUnit:
		return "bare-unit"
	default:
		return "malformed"
	}
}

// Entry is a classified component entry.
type Entry struct {
	// Object is the entry itself when it is an object.
	Object map[string]any
	// Unit is the renderable part: the export for descriptors, the entry
	// itself for bare units.
	Unit any
	Kind Kind
}

// Classify decides whether a raw component entry is a descriptor, a bare
// renderable unit or malformed.
func Classify(raw any, funcs FuncSource) Entry {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Entry{Kind: Malformed}
	}
	if name, ok := obj["name"].(string); ok && name != "" {
		if export, ok := obj["export"]; ok && IsRenderable(export, funcs) {
			return Entry{Kind: Descriptor, Object: obj, Unit: export}
		}
	}
	if IsRenderable(obj, funcs) {
		return Entry{Kind: BareUnit, Object: obj, Unit: obj}
	}
	return Entry{Kind: Malformed, Object: obj}
}

// IsRenderable reports whether v can be mounted as a component: a string
// naming an exported function, an object whose render or setup names an
// exported function, or a functional unit declaring props or emits.
func IsRenderable(v any, funcs FuncSource) bool {
	switch u := v.(type) {
	case string:
		return hasFunc(funcs, u)
	case map[string]any:
		if s, ok := u["render"].(string); ok && hasFunc(funcs, s) {
			return true
		}
		if s, ok := u["setup"].(string); ok && hasFunc(funcs, s) {
			return true
		}
		if u["props"] != nil || u["emits"] != nil {
			return true
		}
	}
	return false
}

func hasFunc(funcs FuncSource, name string) bool {
	if funcs == nil || name == "" {
		return false
	}
	_, ok := funcs.Func(name)
	return ok
}

func lookup(funcs FuncSource, name string) distributed.Callable {
	if funcs == nil || name == "" {
		return nil
	}
	f, _ := funcs.Func(name)
	return f
}

var reservedUnitKeys = map[string]struct{}{
	"render": {}, "setup": {}, "props": {}, "emits": {}, "name": {}, "__name": {},
}

// buildUnit resolves a renderable value into the unit handed to the host.
func buildUnit(name string, v any, funcs FuncSource) *distributed.Unit {
	u := &distributed.Unit{Name: name}
	switch x := v.(type) {
	case string:
		u.Render = lookup(funcs, x)
	case map[string]any:
		if s, ok := x["render"].(string); ok {
			u.Render = lookup(funcs, s)
		}
		if s, ok := x["setup"].(string); ok {
			u.Setup = lookup(funcs, s)
		}
		for k, val := range x {
			if _, reserved := reservedUnitKeys[k]; reserved {
				continue
			}
			if u.Options == nil {
				u.Options = make(map[string]any)
			}
			u.Options[k] = val
		}
	}
	return u
}
