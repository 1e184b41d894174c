package definition

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
)

// ExportSource exposes the decoded exports of a loaded bundle.
type ExportSource interface {
	Value(key string) (any, bool)
}

// Extract returns the module definition exported by a bundle: the plugin
// export when present, else the default export.
func Extract(exports ExportSource, loc, module string) (map[string]any, error) {
	for _, key := range []string{bundle.ExportPlugin, bundle.ExportDefault} {
		v, ok := exports.Value(key)
		if !ok || v == nil {
			continue
		}
		def, ok := v.(map[string]any)
		if !ok {
			return nil, errors.New(errors.PhaseNormalize, errors.KindNoExportFound).
				Location(loc).
				Module(module).
				Detail("%s export is %T, want object", key, v).
				Build()
		}
		return def, nil
	}
	return nil, errors.NoExportFound(loc, module)
}

// Normalizer shapes raw module definitions.
type Normalizer struct {
	logger *zap.Logger
	known  func() []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for entry warnings.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithKnownComponents supplies the names of already registered components
// for collision warnings.
func WithKnownComponents(f func() []string) Option {
	return func(n *Normalizer) {
		n.known = f
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeModule shapes a raw definition exported by the bundle loaded as
// module. Malformed entries are dropped with a warning and recorded in
// Module.Rejected; the module itself is always returned.
func (n *Normalizer) NormalizeModule(module string, raw map[string]any, funcs FuncSource) *Module {
	log := n.logger.With(zap.String("module", module))
	m := &Module{Name: module}

	if s, ok := raw["name"].(string); ok && s != "" {
		m.Name = s
	}
	m.Version = scalarString(raw["version"])
	m.Category = scalarString(raw["category"])

	desc, err := FormatDescription(raw["description"])
	if err != nil {
		log.Warn("an error occurred while parsing module description", zap.Error(err))
		m.Rejected = append(m.Rejected, errors.MalformedEntry(module, []string{"description"}, err.Error()))
	}
	m.Description = desc

	m.Components = n.components(log, module, raw["components"], funcs, m)
	m.Directives = n.directives(log, module, raw["directives"], funcs, m)
	m.Dependencies = parseDependencies(raw["dependencies"])

	n.warnCollisions(log, m.Components)
	return m
}

func (n *Normalizer) components(log *zap.Logger, module string, raw any, funcs FuncSource, m *Module) []Component {
	if raw == nil {
		return []Component{}
	}
	list, ok := raw.([]any)
	if !ok {
		err := errors.MalformedEntry(module, []string{"components"}, "components is not a list")
		log.Warn(err.Detail)
		m.Rejected = append(m.Rejected, err)
		return []Component{}
	}

	out := make([]Component, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, entry := range list {
		path := []string{"components", strconv.Itoa(i)}
		c, err := n.component(log, module, path, entry, funcs)
		if err == nil {
			err = duplicate(module, path, "component", c.Name, seen)
		}
		if err != nil {
			log.Warn(err.Detail, zap.String("entry", path[1]))
			m.Rejected = append(m.Rejected, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// duplicate rejects a name already taken by an earlier entry of the same
// module. The first entry keeps the name.
func duplicate(module string, path []string, what, name string, seen map[string]struct{}) *errors.Error {
	if _, ok := seen[name]; ok {
		return errors.MalformedEntry(module, path,
			what+" "+strconv.Quote(name)+" is declared more than once")
	}
	seen[name] = struct{}{}
	return nil
}

func (n *Normalizer) component(log *zap.Logger, module string, path []string, raw any, funcs FuncSource) (Component, *errors.Error) {
	entry := Classify(raw, funcs)

	switch entry.Kind {
	case Descriptor:
		name := entry.Object["name"].(string)
		c := Component{Name: name, Export: buildUnit(name, entry.Unit, funcs)}

		desc, err := FormatDescription(entry.Object["description"])
		if err != nil {
			log.Warn("an error occurred while parsing component description",
				zap.String("component", name), zap.Error(err))
		}
		c.Description = &desc

		// descriptor-level declarations win over the unit's own
		unit, _ := entry.Unit.(map[string]any)
		c.Props = n.props(log, name, first(entry.Object["props"], unit["props"]))
		c.Emits = ParseEmits(first(entry.Object["emits"], unit["emits"]))
		return c, nil

	case BareUnit:
		name, _ := entry.Object["name"].(string)
		if name == "" {
			name, _ = entry.Object["__name"].(string)
		}
		if name == "" {
			return Component{}, errors.MalformedEntry(module, path, "could not import component without name")
		}
		return Component{
			Name:   name,
			Export: buildUnit(name, entry.Unit, funcs),
			Props:  n.props(log, name, entry.Object["props"]),
			Emits:  ParseEmits(entry.Object["emits"]),
		}, nil
	}

	return Component{}, errors.MalformedEntry(module, path,
		"an object passed as component is neither a renderable unit nor a component descriptor")
}

func (n *Normalizer) props(log *zap.Logger, component string, raw any) map[string]Prop {
	props, problems := ParseProps(raw)
	for _, p := range problems {
		log.Warn("prop declaration not fully understood",
			zap.String("component", component), zap.Error(p))
	}
	return props
}

// directive hook names recognized on directive exports
var directiveHooks = []string{
	"created", "beforeMount", "mounted", "beforeUpdate", "updated", "beforeUnmount", "unmounted",
}

func (n *Normalizer) directives(log *zap.Logger, module string, raw any, funcs FuncSource, m *Module) []Directive {
	if raw == nil {
		return []Directive{}
	}
	list, ok := raw.([]any)
	if !ok {
		err := errors.MalformedEntry(module, []string{"directives"}, "directives is not a list")
		log.Warn(err.Detail)
		m.Rejected = append(m.Rejected, err)
		return []Directive{}
	}

	out := make([]Directive, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, entry := range list {
		path := []string{"directives", strconv.Itoa(i)}
		d, err := directive(module, path, entry, funcs)
		if err == nil {
			err = duplicate(module, path, "directive", d.Name, seen)
		}
		if err != nil {
			log.Warn(err.Detail, zap.String("entry", path[1]))
			m.Rejected = append(m.Rejected, err)
			continue
		}
		if d.Description == nil {
			desc := Description{}
			d.Description = &desc
		}
		out = append(out, d)
	}
	return out
}

func directive(module string, path []string, raw any, funcs FuncSource) (Directive, *errors.Error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Directive{}, errors.MalformedEntry(module, path, "directive entry is not an object")
	}
	name, _ := obj["name"].(string)
	if name == "" {
		return Directive{}, errors.MalformedEntry(module, path, "could not import directive without name")
	}

	unit := &distributed.Unit{Name: name}
	switch export := obj["export"].(type) {
	case string:
		// function shorthand runs on mount and update
		if f := lookup(funcs, export); f != nil {
			unit.Hooks = map[string]distributed.Callable{"mounted": f, "updated": f}
		}
	case map[string]any:
		for _, hook := range directiveHooks {
			if s, ok := export[hook].(string); ok {
				if f := lookup(funcs, s); f != nil {
					if unit.Hooks == nil {
						unit.Hooks = make(map[string]distributed.Callable)
					}
					unit.Hooks[hook] = f
				}
			}
		}
		if IsRenderable(export, funcs) {
			built := buildUnit(name, export, funcs)
			unit.Render, unit.Setup, unit.Options = built.Render, built.Setup, built.Options
		}
	}
	if len(unit.Hooks) == 0 && unit.Render == nil && unit.Setup == nil {
		return Directive{}, errors.MalformedEntry(module, path,
			"directive "+strconv.Quote(name)+" exports no known hook")
	}

	d := Directive{Name: name, Export: unit}
	if rd, ok := obj["description"]; ok {
		desc, err := FormatDescription(rd)
		if err == nil {
			d.Description = &desc
		}
	}
	return d, nil
}

func (n *Normalizer) warnCollisions(log *zap.Logger, components []Component) {
	if n.known == nil || len(components) == 0 {
		return
	}
	known := make(map[string]struct{})
	for _, name := range n.known() {
		known[name] = struct{}{}
	}
	seen := make(map[string]struct{})
	var overlapping []string
	for _, c := range components {
		if _, ok := known[c.Name]; !ok {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		overlapping = append(overlapping, c.Name)
	}
	if len(overlapping) > 0 {
		log.Warn("components were already registered, the new implementations will replace existing ones",
			zap.Strings("components", overlapping))
	}
}

func parseDependencies(raw any) []Dependency {
	var out []Dependency
	switch v := raw.(type) {
	case map[string]any:
		for name, c := range v {
			out = append(out, Dependency{Name: name, Constraint: scalarString(c)})
		}
	case []any:
		for _, e := range v {
			if name, ok := e.(string); ok && name != "" {
				out = append(out, Dependency{Name: name})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func first(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
