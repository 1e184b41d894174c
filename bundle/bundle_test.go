package bundle_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/internal/bundletest"
)

func TestSections(t *testing.T) {
	mod := bundletest.Module(map[string]int32{"render": 1, "setup": 2})
	secs, err := bundle.Sections(mod)
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	var ids []byte
	for _, s := range secs {
		ids = append(ids, s.ID)
	}
	want := []byte{bundle.SectionType, bundle.SectionFunction, bundle.SectionExport, bundle.SectionCode}
	if !bytes.Equal(ids, want) {
		t.Errorf("section ids = %v, want %v", ids, want)
	}
}

func TestSections_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short", []byte{0x00, 0x61}},
		{"bad magic", []byte{0x01, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}},
		{"bad version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}},
		{"truncated section", append(bundle.Header(), 0x01, 0x10, 0x00)},
		{"truncated custom name", append(bundle.Header(), 0x00, 0x02, 0x09, 'a')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bundle.Sections(tt.in)
			if !errors.IsKind(err, errors.KindParseFailure) {
				t.Fatalf("err = %v, want parse_failure", err)
			}
		})
	}
}

func TestPack(t *testing.T) {
	def := map[string]any{"name": "charts", "components": []any{}}
	build := &bundle.BuildInfo{Version: "1.2.0", Author: "ACME"}

	packed, err := bundle.Pack(bundletest.Module(map[string]int32{"render": 7}), def, build)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	secs, err := bundle.CustomSections(packed)
	if err != nil {
		t.Fatalf("CustomSections: %v", err)
	}
	if _, ok := secs[bundle.SectionPlugin]; !ok {
		t.Fatalf("missing %s section", bundle.SectionPlugin)
	}

	var gotBuild bundle.BuildInfo
	if err := json.Unmarshal(secs[bundle.SectionBuild], &gotBuild); err != nil {
		t.Fatalf("decode build: %v", err)
	}
	if gotBuild.Version != "1.2.0" {
		t.Errorf("Version = %q", gotBuild.Version)
	}
	if gotBuild.Pkg == "" {
		t.Error("Pkg should default to the content digest")
	}
	if build.Pkg != "" {
		t.Error("Pack must not mutate the caller's build info")
	}

	t.Run("pkg covers the definition", func(t *testing.T) {
		code := bundletest.Module(map[string]int32{"render": 7})
		pkg := func(def any) string {
			out, err := bundle.Pack(code, def, &bundle.BuildInfo{Version: "1.2.0"})
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			secs, err := bundle.CustomSections(out)
			if err != nil {
				t.Fatalf("CustomSections: %v", err)
			}
			var b bundle.BuildInfo
			if err := json.Unmarshal(secs[bundle.SectionBuild], &b); err != nil {
				t.Fatalf("decode build: %v", err)
			}
			return b.Pkg
		}
		alpha := pkg(map[string]any{"name": "alpha"})
		if alpha != pkg(map[string]any{"name": "alpha"}) {
			t.Error("Pkg should be stable for the same input")
		}
		if alpha == pkg(map[string]any{"name": "beta"}) {
			t.Error("different definitions over the same code share a Pkg")
		}
	})

	t.Run("repack replaces sections", func(t *testing.T) {
		again, err := bundle.Pack(packed, map[string]any{"name": "other"}, nil)
		if err != nil {
			t.Fatalf("Pack: %v", err)
		}
		secs, err := bundle.CustomSections(again)
		if err != nil {
			t.Fatalf("CustomSections: %v", err)
		}
		if _, ok := secs[bundle.SectionBuild]; ok {
			t.Error("build section should have been stripped")
		}
		if !bytes.Contains(secs[bundle.SectionPlugin], []byte("other")) {
			t.Errorf("plugin section = %s", secs[bundle.SectionPlugin])
		}
	})

	t.Run("foreign custom sections survive", func(t *testing.T) {
		withName := bundle.AppendCustom(bundletest.Module(nil), "name", []byte{0x01})
		out, err := bundle.Pack(withName, def, nil)
		if err != nil {
			t.Fatalf("Pack: %v", err)
		}
		secs, _ := bundle.Sections(out)
		found := false
		for _, s := range secs {
			if s.Name == "name" {
				found = true
			}
		}
		if !found {
			t.Error("foreign custom section dropped")
		}
	})
}

func TestParseBuildInfo(t *testing.T) {
	got := bundle.ParseBuildInfo(map[string]any{
		"version": " 2.0.1 ",
		"author":  map[string]any{"name": "x"},
		"loader":  "abc",
		"pkg":     "f00d",
	})
	if got == nil || got.Version != "2.0.1" || got.Pkg != "f00d" || got.Loader != "abc" {
		t.Errorf("ParseBuildInfo = %+v", got)
	}
	if bundle.ParseBuildInfo("nope") != nil {
		t.Error("non-object build info should be nil")
	}
	if bundle.ParseBuildInfo(nil) != nil {
		t.Error("nil build info should be nil")
	}
}

func TestExportName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{bundle.SectionPlugin, "plugin", true},
		{bundle.SectionDefault, "default", true},
		{"distributed.", "", false},
		{"name", "", false},
	}
	for _, tt := range tests {
		got, ok := bundle.ExportName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExportName(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestArchive(t *testing.T) {
	payload := bundletest.Module(map[string]int32{"render": 1})
	zip, err := bundle.Archive("charts", "", "", payload)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	got, sri, err := bundle.Extract(zip, "charts", "", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload differs")
	}
	if !integrity.Verify(got, sri) {
		t.Errorf("digest %q does not verify payload", sri)
	}

	t.Run("wrong name", func(t *testing.T) {
		_, _, err := bundle.Extract(zip, "other", "", "")
		if !errors.IsKind(err, errors.KindLoadFailure) {
			t.Errorf("err = %v, want load_failure", err)
		}
	})

	t.Run("not a zip", func(t *testing.T) {
		_, _, err := bundle.Extract([]byte("plain"), "charts", "", "")
		if !errors.IsKind(err, errors.KindParseFailure) {
			t.Errorf("err = %v, want parse_failure", err)
		}
	})
}

func TestLEB128(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		if got := bundle.EncodeLEB128u(tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeLEB128u(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}
