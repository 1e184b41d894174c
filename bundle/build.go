package bundle

import "strings"

// BuildInfo is embedded by the bundler into every bundle.
type BuildInfo struct {
	// Author is a string or an author object.
	Author any `json:"author,omitempty"`
	// Version of the loader the bundle was built against.
	Version string `json:"version"`
	// Loader identifies the loader build.
	Loader string `json:"loader,omitempty"`
	// Pkg is the content hash of the bundle, used as its install key.
	Pkg string `json:"pkg,omitempty"`
}

// ParseBuildInfo converts a decoded build section into BuildInfo.
// Unknown shapes yield nil.
func ParseBuildInfo(raw any) *BuildInfo {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	b := &BuildInfo{Author: m["author"]}
	b.Version, _ = m["version"].(string)
	b.Loader, _ = m["loader"].(string)
	b.Pkg, _ = m["pkg"].(string)
	b.Version = strings.TrimSpace(b.Version)
	b.Pkg = strings.TrimSpace(b.Pkg)
	return b
}

// Clone returns a copy of b.
func (b *BuildInfo) Clone() *BuildInfo {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
