package loader

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
)

// Config holds configuration for the wazero loader
type Config struct {
	// MemoryLimitPages sets the maximum memory per bundle in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// WazeroLoader implements Loader with a shared wazero runtime.
type WazeroLoader struct {
	runtime wazero.Runtime
	mu      sync.Mutex
	loaded  map[string]*loaded
}

type loaded struct {
	module   api.Module
	compiled wazero.CompiledModule
	exports  *Exports
}

// NewWazeroLoader creates a loader backed by a new wazero runtime.
func NewWazeroLoader(ctx context.Context, cfg *Config) *WazeroLoader {
	runtimeCfg := wazero.NewRuntimeConfig().WithCustomSections(true)
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &WazeroLoader{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		loaded:  make(map[string]*loaded),
	}
}

// Load compiles and instantiates source under name.
func (l *WazeroLoader) Load(ctx context.Context, name string, source []byte) (*Exports, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.loaded[name]; ok {
		Logger().Debug("bundle already executed, reusing exports", zap.String("module", name))
		return existing.exports, nil
	}

	compiled, err := l.runtime.CompileModule(ctx, source)
	if err != nil {
		return nil, errors.LoadFailure(name, "compile bundle", err)
	}

	values, err := decodeSections(name, compiled.CustomSections())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	mod, err := l.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(name, "instantiate bundle", err)
	}

	guard := &sync.Mutex{}
	funcs := make(map[string]distributed.Callable)
	for fnName, def := range mod.ExportedFunctionDefinitions() {
		fn := mod.ExportedFunction(fnName)
		if fn == nil {
			continue
		}
		funcs[fnName] = &function{fn: fn, def: def, mu: guard}
	}

	exports := NewExports(name, values, funcs)
	l.loaded[name] = &loaded{module: mod, compiled: compiled, exports: exports}

	Logger().Debug("bundle executed",
		zap.String("module", name),
		zap.Int("functions", len(funcs)),
		zap.Int("sections", len(values)))
	return exports, nil
}

// Release closes the module instance loaded under name.
func (l *WazeroLoader) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	entry, ok := l.loaded[name]
	delete(l.loaded, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := entry.module.Close(ctx); err != nil {
		return errors.LoadFailure(name, "release bundle", err)
	}
	return entry.compiled.Close(ctx)
}

// Loaded returns the names of currently loaded bundles.
func (l *WazeroLoader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.loaded))
	for n := range l.loaded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close releases every bundle and the runtime.
func (l *WazeroLoader) Close(ctx context.Context) error {
	l.mu.Lock()
	l.loaded = make(map[string]*loaded)
	l.mu.Unlock()
	return l.runtime.Close(ctx)
}

func decodeSections(name string, sections []api.CustomSection) (map[string]any, error) {
	values := make(map[string]any)
	for _, s := range sections {
		key, ok := bundle.ExportName(s.Name())
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(s.Data(), &v); err != nil {
			return nil, errors.New(errors.PhaseImport, errors.KindParseFailure).
				Module(name).
				Path(s.Name()).
				Detail("section is not valid JSON").
				Cause(err).
				Build()
		}
		values[key] = v
	}
	return values, nil
}

// function serializes calls into one module instance, which is not safe for
// concurrent use.
type function struct {
	fn  api.Function
	def api.FunctionDefinition
	mu  *sync.Mutex
}

func (f *function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn.Call(ctx, params...)
}

func (f *function) ParamTypes() []string {
	return typeNames(f.def.ParamTypes())
}

func (f *function) ResultTypes() []string {
	return typeNames(f.def.ResultTypes())
}

func typeNames(types []api.ValueType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = api.ValueTypeName(t)
	}
	return out
}
