package version

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		host   string
		module string
		want   State
	}{
		{"1.2.0", "1.3.0", Newer},
		{"1.3.0", "1.2.0", Older},
		{"1.2.0", "1.2.0", Equal},
		{"1.2", "1.2.0", Equal},
		{"1.2.0", "1.2", Equal},
		{"1.2", "1.2.1", Newer},
		{"v2.0.0", "1.9.9", Older},
		{"1.10.0", "1.9.0", Older},
		{"1.0.0-beta", "1.0.0", Equal},
		{"1.x.0", "1.0.0", Equal},
		{"1.2.0", "1.2.0-rc", Equal},
		{"1.2.0", "1.2.0-rc.1", Newer},
		{"", "1.0.0", Unknown},
		{"1.0.0", "", Unknown},
		{"1..0", "1.0.0", Unknown},
		{"1.0.0", "beta", Unknown},
		{"1.0.0", "99999999999999999999.0", Unknown},
		{"1.-1", "1.0", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.host+"_"+tt.module, func(t *testing.T) {
			got := Compare(tt.host, tt.module)
			if got.State != tt.want {
				t.Errorf("Compare(%q, %q) = %s, want %s", tt.host, tt.module, got.State, tt.want)
			}
			if got.Host != tt.host || got.Module != tt.module {
				t.Errorf("result should carry the inputs: %+v", got)
			}
		})
	}
}

func TestCompare_Transitive(t *testing.T) {
	versions := []string{"0.9.12", "1.2.0", "1.3.0", "1.10.0", "2.0"}
	for i := 0; i < len(versions); i++ {
		for j := i + 1; j < len(versions); j++ {
			if s := Compare(versions[i], versions[j]).State; s != Newer {
				t.Errorf("Compare(%s, %s) = %s, want newer", versions[i], versions[j], s)
			}
			if s := Compare(versions[j], versions[i]).State; s != Older {
				t.Errorf("Compare(%s, %s) = %s, want older", versions[j], versions[i], s)
			}
		}
	}
}

func TestComparator_WarnsOnUnknown(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewComparator(zap.New(core))

	if res := c.Compare("1.0.0", "nope"); res.State != Unknown || res.Compatible() {
		t.Errorf("state = %s", res.State)
	}
	if logs.FilterMessage("cannot compare versions").Len() != 1 {
		t.Errorf("expected a warning, got %d entries", logs.Len())
	}

	c.Compare("1.0.0", "1.0.0")
	if logs.Len() != 1 {
		t.Error("valid versions should not warn")
	}
}
