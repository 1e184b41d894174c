package install

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/definition"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/internal/hosttest"
	"github.com/wippyai/wasm-distributed/registry"
)

type deps map[string]any

func (d deps) Dependency(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

type versioned string

func (v versioned) Version() string { return string(v) }

func register(t *testing.T, r *registry.Registry, name string, build *bundle.BuildInfo, def *definition.Module) *registry.Module {
	t.Helper()
	rec := registry.Record{
		CanonicalName: name,
		Location:      "https://h/" + name + ".umd.wasm",
		Integrity:     "sha384-" + name,
		Digest:        integrity.ContentDigest([]byte(name)),
	}
	m, _, err := r.Register(rec, def, build)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return m
}

func chartsDef() *definition.Module {
	return &definition.Module{
		Name: "charts",
		Components: []definition.Component{
			{Name: "Bar", Export: &distributed.Unit{Name: "Bar"}},
			{Name: "Line", Export: &distributed.Unit{Name: "Line"}},
		},
		Directives: []definition.Directive{
			{Name: "tooltip", Export: &distributed.Unit{Name: "tooltip"}},
		},
	}
}

func TestProcedure_InstallOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inst := NewInstaller(NewLedger(), WithLogger(zap.New(core)))
	m := register(t, registry.New(), "charts", &bundle.BuildInfo{Pkg: "pkg-1"}, chartsDef())
	host := hosttest.New()
	ctx := context.Background()

	p := inst.Build(m)
	if p.Key() != "pkg-1" {
		t.Errorf("Key = %q, want build pkg", p.Key())
	}
	if err := p.Install(ctx, host); err != nil {
		t.Fatalf("Install: %v", err)
	}

	calls := host.Calls()
	want := []string{"directive:tooltip", "component:Bar", "component:Line"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, calls[i], want[i])
		}
	}

	// second application of a fresh procedure for the same content
	if err := inst.Build(m).Install(ctx, host); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if len(host.Calls()) != 3 {
		t.Errorf("second install registered again: %v", host.Calls())
	}
	if logs.FilterMessage("module is already installed").Len() != 1 {
		t.Error("expected an already installed warning")
	}
}

func TestProcedure_SameContentDifferentNames(t *testing.T) {
	inst := NewInstaller(nil)
	r := registry.New()
	a := register(t, r, "a", &bundle.BuildInfo{Pkg: "same"}, chartsDef())
	b := register(t, r, "b", &bundle.BuildInfo{Pkg: "same"}, chartsDef())
	host := hosttest.New()

	_ = inst.Build(a).Install(context.Background(), host)
	_ = inst.Build(b).Install(context.Background(), host)
	if n := len(host.Calls()); n != 3 {
		t.Errorf("registrations = %d, want 3", n)
	}
}

func TestProcedure_ConcurrentInstall(t *testing.T) {
	inst := NewInstaller(nil)
	m := register(t, registry.New(), "charts", nil, chartsDef())
	host := hosttest.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = inst.Build(m).Install(context.Background(), host)
		}()
	}
	wg.Wait()
	if n := len(host.Calls()); n != 3 {
		t.Errorf("registrations = %d, want 3", n)
	}
}

func TestKey(t *testing.T) {
	r := registry.New()
	withPkg := register(t, r, "a", &bundle.BuildInfo{Pkg: "p"}, nil)
	noPkg := register(t, r, "b", &bundle.BuildInfo{Version: "1"}, nil)

	if Key(withPkg) != "p" {
		t.Errorf("Key = %q", Key(withPkg))
	}
	if got := Key(noPkg); got != integrity.ContentDigest([]byte("b")).String() {
		t.Errorf("Key without pkg = %q, want content digest", got)
	}

	bare, _, _ := r.Register(registry.Record{CanonicalName: "c", Integrity: "sha384-c", Location: "loc"}, nil, nil)
	if got := Key(bare); got != "sha384-c" {
		t.Errorf("Key fallback = %q", got)
	}
}

func TestNoOp(t *testing.T) {
	if !NoOp.IsNoOp() || NoOp.Module() != nil {
		t.Error("NoOp should have no module")
	}
	if err := NoOp.Install(context.Background(), nil); err != nil {
		t.Errorf("NoOp.Install = %v", err)
	}
	if p := NewInstaller(nil).Build(nil); p != NoOp {
		t.Error("Build(nil) should return NoOp")
	}
}

func TestProcedure_HostFailureAllowsRetry(t *testing.T) {
	inst := NewInstaller(nil)
	m := register(t, registry.New(), "charts", nil, chartsDef())
	host := hosttest.New()
	host.FailOn = "Line"

	err := inst.Build(m).Install(context.Background(), host)
	if !errors.IsKind(err, errors.KindLoadFailure) {
		t.Fatalf("err = %v, want load_failure", err)
	}
	if inst.Ledger().Len() != 0 {
		t.Error("failed install should not stay in the ledger")
	}

	host.FailOn = ""
	if err := inst.Build(m).Install(context.Background(), host); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !inst.Ledger().Has(Key(m)) {
		t.Error("successful retry should be recorded")
	}
}

func TestProcedure_NilHost(t *testing.T) {
	m := register(t, registry.New(), "charts", nil, chartsDef())
	err := NewInstaller(nil).Build(m).Install(context.Background(), nil)
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestCheckDependencies(t *testing.T) {
	def := &definition.Module{Dependencies: []definition.Dependency{
		{Name: "store", Constraint: "^4.0.0"},
		{Name: "router", Constraint: ">=2"},
		{Name: "i18n"},
		{Name: "theme", Constraint: "^1"},
		{Name: "plain", Constraint: "^1"},
		{Name: "bad", Constraint: "not a constraint"},
	}}
	m := register(t, registry.New(), "m", nil, def)
	inst := NewInstaller(nil, WithDependencies(deps{
		"store":  versioned("4.2.1"),
		"router": versioned("1.9.0"),
		"theme":  versioned("banana"),
		"plain":  struct{}{},
		"bad":    versioned("1.0.0"),
	}))

	issues := inst.CheckDependencies(m)
	got := map[string]string{}
	for _, i := range issues {
		got[i.Dependency] = i.Problem
	}

	if _, ok := got["store"]; ok {
		t.Error("store satisfies its constraint")
	}
	if _, ok := got["plain"]; ok {
		t.Error("unversioned values are not checked")
	}
	for _, name := range []string{"router", "i18n", "theme", "bad"} {
		if got[name] == "" {
			t.Errorf("expected an issue for %s", name)
		}
	}
	if got["i18n"] != "not provided" {
		t.Errorf("i18n problem = %q", got["i18n"])
	}
}

func TestInstall_DependencyWarningsAreAdvisory(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	def := chartsDef()
	def.Dependencies = []definition.Dependency{{Name: "store", Constraint: "^4"}}
	m := register(t, registry.New(), "charts", nil, def)

	inst := NewInstaller(nil, WithLogger(zap.New(core)), WithDependencies(deps{"store": versioned("3.0.0")}))
	host := hosttest.New()
	if err := inst.Build(m).Install(context.Background(), host); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(host.ComponentNames()) != 2 {
		t.Error("components should be installed despite the dependency warning")
	}
	if logs.FilterMessage("module dependency check failed").Len() != 1 {
		t.Error("expected one dependency warning")
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	if !l.Add("a") || l.Add("a") {
		t.Error("Add should report first insertion only")
	}
	l.Add("b")
	if keys := l.Keys(); len(keys) != 2 || keys[0] != "a" {
		t.Errorf("Keys = %v", keys)
	}
	l.Reset()
	if l.Len() != 0 || l.Has("a") {
		t.Error("Reset should empty the ledger")
	}
}
