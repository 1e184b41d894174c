package loader

import (
	"context"
	"sync"
	"testing"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/internal/bundletest"
)

func newLoader(t *testing.T) *WazeroLoader {
	t.Helper()
	ctx := context.Background()
	l := NewWazeroLoader(ctx, &Config{MemoryLimitPages: 16})
	t.Cleanup(func() { _ = l.Close(ctx) })
	return l
}

func TestWazeroLoader_Load(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	def := map[string]any{
		"name":       "charts",
		"components": []any{map[string]any{"name": "Bar", "export": map[string]any{"render": "render_bar"}}},
	}
	src := bundletest.Bundle(t, def, &bundle.BuildInfo{Version: "1.0.0"}, map[string]int32{
		"render_bar": 42,
		"setup":      -3,
	})

	exp, err := l.Load(ctx, "charts", src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exp.Name() != "charts" {
		t.Errorf("Name = %q", exp.Name())
	}

	plugin, ok := exp.Value(bundle.ExportPlugin)
	if !ok {
		t.Fatal("plugin export missing")
	}
	if m, _ := plugin.(map[string]any); m["name"] != "charts" {
		t.Errorf("plugin = %v", plugin)
	}
	if _, ok := exp.Value(bundle.ExportBuild); !ok {
		t.Error("build export missing")
	}

	names := exp.FuncNames()
	if len(names) != 2 || names[0] != "render_bar" || names[1] != "setup" {
		t.Fatalf("FuncNames = %v", names)
	}

	fn, _ := exp.Func("render_bar")
	res, err := fn.Call(ctx)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(res) != 1 || int32(res[0]) != 42 {
		t.Errorf("result = %v, want [42]", res)
	}

	setup, _ := exp.Func("setup")
	res, err = setup.Call(ctx)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if int32(res[0]) != -3 {
		t.Errorf("setup = %d, want -3", int32(res[0]))
	}

	sig, ok := fn.(Signature)
	if !ok {
		t.Fatal("wazero callables should expose their signature")
	}
	if p := sig.ParamTypes(); len(p) != 0 {
		t.Errorf("ParamTypes = %v", p)
	}
	if r := sig.ResultTypes(); len(r) != 1 || r[0] != "i32" {
		t.Errorf("ResultTypes = %v", r)
	}
}

func TestWazeroLoader_SameNameReusesExports(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)
	src := bundletest.Bundle(t, map[string]any{"name": "a"}, nil, map[string]int32{"f": 1})

	first, err := l.Load(ctx, "a", src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := l.Load(ctx, "a", src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Error("loading the same name twice should return the same exports")
	}
}

func TestWazeroLoader_Release(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)
	src := bundletest.Bundle(t, map[string]any{"name": "a"}, nil, map[string]int32{"f": 1})

	if _, err := l.Load(ctx, "a", src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := l.Loaded(); len(got) != 1 {
		t.Fatalf("Loaded = %v", got)
	}
	if err := l.Release(ctx, "a"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := l.Loaded(); len(got) != 0 {
		t.Fatalf("Loaded after release = %v", got)
	}
	if err := l.Release(ctx, "a"); err != nil {
		t.Errorf("second Release: %v", err)
	}

	// name is free again
	if _, err := l.Load(ctx, "a", src); err != nil {
		t.Fatalf("reload after release: %v", err)
	}
}

func TestWazeroLoader_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not wasm", func(t *testing.T) {
		_, err := newLoader(t).Load(ctx, "x", []byte("console.log(1)"))
		if !errors.IsKind(err, errors.KindLoadFailure) {
			t.Errorf("err = %v, want load_failure", err)
		}
	})

	t.Run("bad definition json", func(t *testing.T) {
		src := bundle.AppendCustom(bundletest.Module(nil), bundle.SectionPlugin, []byte("{not json"))
		_, err := newLoader(t).Load(ctx, "x", src)
		if !errors.IsKind(err, errors.KindParseFailure) {
			t.Errorf("err = %v, want parse_failure", err)
		}
	})
}

func TestWazeroLoader_ConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)
	src := bundletest.Bundle(t, nil, nil, map[string]int32{"f": 5})
	exp, err := l.Load(ctx, "c", src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fn, _ := exp.Func("f")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fn.Call(ctx)
			if err != nil || int32(res[0]) != 5 {
				t.Errorf("Call = %v, %v", res, err)
			}
		}()
	}
	wg.Wait()
}

func TestNewExports_CopiesMaps(t *testing.T) {
	values := map[string]any{"plugin": 1}
	e := NewExports("n", values, nil)
	values["plugin"] = 2
	if v, _ := e.Value("plugin"); v != 1 {
		t.Errorf("Value = %v, want 1", v)
	}
	if _, ok := e.Func("missing"); ok {
		t.Error("unexpected func")
	}
}
