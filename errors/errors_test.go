package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseNormalize,
				Kind:     KindMalformedEntry,
				Module:   "charts",
				Path:     []string{"components", "2"},
				Location: "https://cdn.example.com/charts.umd.wasm",
				Detail:   "component without name",
			},
			contains: []string{"[normalize]", "malformed_entry", "module charts", "components.2", "cdn.example.com", "component without name"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseFetch,
				Kind:  KindFetchFailure,
			},
			contains: []string{"[fetch]", "fetch_failure"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseImport,
				Kind:   KindLoadFailure,
				Detail: "instantiate",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[import]", "load_failure", "instantiate", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseFetch,
		Kind:  KindFetchFailure,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := IntegrityMismatch("a.umd.wasm", "sha384-a", "sha384-b")

	if !err.Is(&Error{Phase: PhaseVerify, Kind: KindIntegrityMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseFetch, Kind: KindIntegrityMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseVerify, Kind: KindInvalidDigest}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("load: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseVerify, Kind: KindIntegrityMismatch}) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestIsKind(t *testing.T) {
	inner := FetchStatus("x.umd.wasm", 404, "missing")
	outer := Wrap(PhaseImport, KindLoadFailure, inner, "import x")

	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"outer kind", outer, KindLoadFailure, true},
		{"inner kind", outer, KindFetchFailure, true},
		{"through fmt", fmt.Errorf("ctx: %w", outer), KindFetchFailure, true},
		{"absent kind", outer, KindIntegrityMismatch, false},
		{"plain error", errors.New("x"), KindFetchFailure, false},
		{"nil", nil, KindFetchFailure, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if k, ok := KindOf(fmt.Errorf("x: %w", InvalidLocation("", "empty"))); !ok || k != KindInvalidLocation {
		t.Errorf("KindOf = %v, %v", k, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf should not match plain error")
	}
}

func TestRetryable(t *testing.T) {
	if !FetchFailure("a", errors.New("reset")).Retryable() {
		t.Error("fetch failure should be retryable")
	}
	if IntegrityMismatch("a", "x", "y").Retryable() {
		t.Error("integrity mismatch should be terminal")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseNormalize, KindMalformedEntry).
		Path("components", "1").
		Module("charts").
		Location("charts.umd.wasm").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "object", "number").
		Build()

	if err.Phase != PhaseNormalize {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseNormalize)
	}
	if err.Kind != KindMalformedEntry {
		t.Errorf("Kind = %v, want %v", err.Kind, KindMalformedEntry)
	}
	if len(err.Path) != 2 || err.Path[0] != "components" || err.Path[1] != "1" {
		t.Errorf("Path = %v, want [components 1]", err.Path)
	}
	if err.Module != "charts" {
		t.Errorf("Module = %v, want charts", err.Module)
	}
	if err.Location != "charts.umd.wasm" {
		t.Errorf("Location = %v", err.Location)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected object, got number" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("FetchStatus", func(t *testing.T) {
		err := FetchStatus("a.umd.wasm", 503, "  down for maintenance\n")
		if err.Kind != KindFetchFailure {
			t.Errorf("Kind = %v", err.Kind)
		}
		if err.Detail != "HTTP 503: down for maintenance" {
			t.Errorf("Detail = %q", err.Detail)
		}
		if err.Value != 503 {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("FetchStatus empty body", func(t *testing.T) {
		err := FetchStatus("a", 404, "")
		if err.Detail != "HTTP 404" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("IntegrityMismatch", func(t *testing.T) {
		err := IntegrityMismatch("a", "sha384-x", "sha384-y")
		if !strings.Contains(err.Detail, "sha384-x") || !strings.Contains(err.Detail, "sha384-y") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("InvalidDigest", func(t *testing.T) {
		err := InvalidDigest("a.sri", "md5-zzz")
		if err.Kind != KindInvalidDigest || err.Value != "md5-zzz" {
			t.Errorf("err = %+v", err)
		}
	})

	t.Run("NoExportFound", func(t *testing.T) {
		err := NoExportFound("a.umd.wasm", "a")
		if err.Kind != KindNoExportFound || err.Module != "a" {
			t.Errorf("err = %+v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseRegister, "module", "charts")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"charts"`) {
			t.Errorf("err = %+v", err)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := Duplicate(PhaseInstall, "dependency", "store")
		if err.Kind != KindDuplicate {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("ParseFailure", func(t *testing.T) {
		err := ParseFailure(PhaseImport, "custom section", errors.New("bad json"))
		if err.Kind != KindParseFailure || err.Phase != PhaseImport {
			t.Errorf("err = %+v", err)
		}
	})
}
