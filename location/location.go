// Package location derives canonical module names and companion locations
// from bundle locations.
package location

import (
	"regexp"
	"strings"
	"sync"

	"github.com/wippyai/wasm-distributed/errors"
)

const (
	// DefaultSuffix is the marker separating the module name from the rest
	// of the bundle filename.
	DefaultSuffix = "umd"

	// DefaultPayloadExt is the extension of the executable bundle payload.
	DefaultPayloadExt = "wasm"

	// SidecarExt is appended to a location to find its detached digest.
	SidecarExt = ".sri"

	// ArchiveExt marks archive locations.
	ArchiveExt = ".zip"
)

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

func pattern(suffix string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[suffix]; ok {
		return re
	}
	re := regexp.MustCompile(`^(.*?)\.` + regexp.QuoteMeta(suffix))
	patterns[suffix] = re
	return re
}

// Clean trims surrounding whitespace from a location.
func Clean(loc string) string {
	return strings.TrimSpace(loc)
}

// Filename returns the last path segment of a location, without query or
// fragment.
func Filename(loc string) string {
	loc = Clean(loc)
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		loc = loc[i+1:]
	}
	return loc
}

// Resolve returns the canonical module name of a location: the filename up to
// the first "."+suffix marker.
//
//	Resolve("https://cdn.example.com/a/charts.umd.wasm", "umd") == "charts"
func Resolve(loc, suffix string) (string, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	file := Filename(loc)
	if file == "" {
		return "", errors.InvalidLocation(loc, "location has no filename")
	}
	m := pattern(suffix).FindStringSubmatch(file)
	if m == nil {
		return "", errors.InvalidLocation(loc, "missing ."+suffix+" marker in "+file)
	}
	if m[1] == "" {
		return "", errors.InvalidLocation(loc, "empty module name in "+file)
	}
	return m[1], nil
}

// IsArchive reports whether the location points to a zip archive.
func IsArchive(loc string) bool {
	return strings.HasSuffix(strings.ToLower(Filename(loc)), ArchiveExt)
}

// Sidecar returns the location of the detached digest for loc. The
// extension goes on the path, before any query or fragment.
//
//	Sidecar("https://cdn.example.com/w.umd.wasm?v=2") == "https://cdn.example.com/w.umd.wasm.sri?v=2"
func Sidecar(loc string) string {
	loc = Clean(loc)
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		return loc[:i] + SidecarExt + loc[i:]
	}
	return loc + SidecarExt
}

// PayloadEntry is the archive entry holding the executable bundle.
func PayloadEntry(name, suffix, ext string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if ext == "" {
		ext = DefaultPayloadExt
	}
	return name + "." + suffix + "." + ext
}

// DigestEntry is the archive entry holding the payload's digest.
func DigestEntry(name, suffix, ext string) string {
	return PayloadEntry(name, suffix, ext) + SidecarExt
}
