package location

import (
	"testing"

	"github.com/wippyai/wasm-distributed/errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		loc     string
		suffix  string
		want    string
		wantErr bool
	}{
		{"url", "https://cdn.example.com/x/charts.umd.wasm", "", "charts", false},
		{"surrounding whitespace", "  https://cdn.example.com/charts.umd.wasm\n", "", "charts", false},
		{"archive", "https://cdn.example.com/charts.umd.zip", "", "charts", false},
		{"first marker wins", "/opt/a.umd.b.umd.wasm", "", "a", false},
		{"dotted name", "https://h/my.lib.umd.wasm", "", "my.lib", false},
		{"query stripped", "https://h/charts.umd.wasm?v=2", "", "charts", false},
		{"fragment stripped", "https://h/charts.umd.wasm#x", "", "charts", false},
		{"custom suffix", "https://h/charts.bundle.wasm", "bundle", "charts", false},
		{"relative path", "charts.umd.wasm", "", "charts", false},
		{"no marker", "https://h/charts.wasm", "", "", true},
		{"empty name", "https://h/.umd.wasm", "", "", true},
		{"empty", "", "", "", true},
		{"trailing slash", "https://h/charts/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.loc, tt.suffix)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %q, want error", tt.loc, got)
				}
				if !errors.IsKind(err, errors.KindInvalidLocation) {
					t.Errorf("error kind = %v, want invalid_location", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.loc, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.loc, got, tt.want)
			}
		})
	}
}

func TestIsArchive(t *testing.T) {
	tests := []struct {
		loc  string
		want bool
	}{
		{"https://h/charts.umd.zip", true},
		{"https://h/charts.umd.ZIP", true},
		{"https://h/charts.umd.zip?token=1", true},
		{"https://h/charts.umd.wasm", false},
		{"https://h/zip/charts.umd.wasm", false},
	}
	for _, tt := range tests {
		if got := IsArchive(tt.loc); got != tt.want {
			t.Errorf("IsArchive(%q) = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestCompanions(t *testing.T) {
	sidecars := []struct {
		loc  string
		want string
	}{
		{" https://h/charts.umd.wasm ", "https://h/charts.umd.wasm.sri"},
		{"https://h/charts.umd.wasm?v=2", "https://h/charts.umd.wasm.sri?v=2"},
		{"https://h/charts.umd.wasm#main", "https://h/charts.umd.wasm.sri#main"},
		{"https://h/charts.umd.zip?v=2#x", "https://h/charts.umd.zip.sri?v=2#x"},
		{"/srv/charts.umd.wasm", "/srv/charts.umd.wasm.sri"},
	}
	for _, tt := range sidecars {
		if got := Sidecar(tt.loc); got != tt.want {
			t.Errorf("Sidecar(%q) = %q, want %q", tt.loc, got, tt.want)
		}
	}
	if got := PayloadEntry("charts", "", ""); got != "charts.umd.wasm" {
		t.Errorf("PayloadEntry = %q", got)
	}
	if got := DigestEntry("charts", "umd", "wasm"); got != "charts.umd.wasm.sri" {
		t.Errorf("DigestEntry = %q", got)
	}
}
