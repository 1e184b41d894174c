package definition

import (
	"fmt"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"
)

// declared type names that map onto a WIT primitive
var typeAliases = map[string]string{
	"number":  "f64",
	"boolean": "bool",
	"integer": "s64",
	"int":     "s32",
	"float":   "f64",
}

// ParseProps normalizes a props declaration in object form
// ({name: {type, default, required, validator} | type | null}) or array
// form ([name, ...]). Unknown type names are kept lowercased and reported.
func ParseProps(raw any) (map[string]Prop, []error) {
	out := make(map[string]Prop)
	var problems []error

	switch v := raw.(type) {
	case nil:
	case []any:
		for _, n := range v {
			if name, ok := n.(string); ok && name != "" {
				out[name] = Prop{}
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			p, err := parseProp(v[key])
			if err != nil {
				problems = append(problems, fmt.Errorf("prop %q: %w", key, err))
			}
			out[key] = p
		}
	default:
		problems = append(problems, fmt.Errorf("props is %T, want object or array", raw))
	}
	return out, problems
}

func parseProp(raw any) (Prop, error) {
	switch v := raw.(type) {
	case nil:
		return Prop{HasDefault: true}, nil
	case string:
		return typedProp(Prop{}, v)
	case map[string]any:
		p := Prop{}
		p.Required, _ = v["required"].(bool)
		if def, ok := v["default"]; ok {
			p.Default = def
			p.HasDefault = true
		}
		if _, ok := v["validator"]; ok {
			p.Validator = true
		}
		if t, ok := v["type"].(string); ok {
			return typedProp(p, t)
		}
		return p, nil
	}
	return Prop{}, nil
}

func typedProp(p Prop, declared string) (Prop, error) {
	name := strings.ToLower(strings.TrimSpace(declared))
	if name == "" {
		return p, nil
	}
	if alias, ok := typeAliases[name]; ok {
		name = alias
	}
	p.Type = name
	t, err := wit.ParseType(name)
	if err != nil {
		return p, fmt.Errorf("type %q is not a WIT primitive: %w", declared, err)
	}
	p.WIT = t
	p.Type = TypeName(t)
	return p, nil
}

// ParseEmits normalizes an emits declaration: a list of event names or an
// object keyed by event name.
func ParseEmits(raw any) []string {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(v))
		for k := range v {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	return []string{}
}

// TypeName returns the WIT spelling of a primitive type.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
