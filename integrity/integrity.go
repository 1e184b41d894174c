// Package integrity computes and verifies subresource integrity digests of
// bundle content.
package integrity

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Algorithm names accepted in SRI strings.
const (
	SHA256 = "sha256"
	SHA384 = "sha384"
	SHA512 = "sha512"

	// Algorithm is used for every digest this package produces.
	Algorithm = SHA384
)

// algorithm-base64hash
var sriPattern = regexp.MustCompile(`^(sha256|sha384|sha512)-[A-Za-z0-9+/]+=*$`)

// SRI is a parsed subresource integrity string.
type SRI struct {
	Algorithm string
	Value     string
}

// String returns the "algorithm-value" form.
func (s SRI) String() string {
	return s.Algorithm + "-" + s.Value
}

// Parse validates an SRI string. Surrounding whitespace is ignored so sidecar
// files with a trailing newline are accepted.
func Parse(s string) (SRI, bool) {
	s = strings.TrimSpace(s)
	if !sriPattern.MatchString(s) {
		return SRI{}, false
	}
	alg, value, _ := strings.Cut(s, "-")
	if _, err := base64.StdEncoding.DecodeString(value); err != nil {
		return SRI{}, false
	}
	return SRI{Algorithm: alg, Value: value}, true
}

// Digest returns the sha384 SRI digest of content.
func Digest(content []byte) string {
	return compute(Algorithm, content)
}

// Verify reports whether content matches the expected SRI digest. The digest
// is always recomputed from content; a malformed expected value never matches.
func Verify(content []byte, expected string) bool {
	sri, ok := Parse(expected)
	if !ok {
		return false
	}
	actual := compute(sri.Algorithm, content)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(sri.String())) == 1
}

// ContentDigest returns the OCI content digest of content, used as a stable
// key for installed payloads and cached bundles.
func ContentDigest(content []byte) digest.Digest {
	return digest.FromBytes(content)
}

func compute(alg string, content []byte) string {
	var h hash.Hash
	switch alg {
	case SHA256:
		h = sha256.New()
	case SHA512:
		h = sha512.New()
	default:
		alg = SHA384
		h = sha512.New384()
	}
	h.Write(content)
	return alg + "-" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}
