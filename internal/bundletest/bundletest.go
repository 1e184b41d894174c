// Package bundletest builds bundle fixtures and serves them over HTTP for
// tests.
package bundletest

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/integrity"
)

// Module builds a core module exporting one nullary function per entry of
// funcs, each returning its i32 constant.
func Module(funcs map[string]int32) []byte {
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := bundle.Header()
	if len(names) == 0 {
		return out
	}

	// one type: () -> i32
	out = bundle.AppendSection(out, bundle.SectionType, []byte{0x01, 0x60, 0x00, 0x01, 0x7f})

	var fn bytes.Buffer
	fn.Write(bundle.EncodeLEB128u(uint32(len(names))))
	for range names {
		fn.WriteByte(0x00)
	}
	out = bundle.AppendSection(out, bundle.SectionFunction, fn.Bytes())

	var exp bytes.Buffer
	exp.Write(bundle.EncodeLEB128u(uint32(len(names))))
	for i, name := range names {
		exp.Write(bundle.EncodeLEB128u(uint32(len(name))))
		exp.WriteString(name)
		exp.WriteByte(0x00)
		exp.Write(bundle.EncodeLEB128u(uint32(i)))
	}
	out = bundle.AppendSection(out, bundle.SectionExport, exp.Bytes())

	var code bytes.Buffer
	code.Write(bundle.EncodeLEB128u(uint32(len(names))))
	for _, name := range names {
		var body bytes.Buffer
		body.WriteByte(0x00) // no locals
		body.WriteByte(0x41) // i32.const
		body.Write(encodeLEB128s(funcs[name]))
		body.WriteByte(0x0b) // end
		code.Write(bundle.EncodeLEB128u(uint32(body.Len())))
		code.Write(body.Bytes())
	}
	return bundle.AppendSection(out, bundle.SectionCode, code.Bytes())
}

// Bundle builds a packed bundle.
func Bundle(t testing.TB, definition any, build *bundle.BuildInfo, funcs map[string]int32) []byte {
	t.Helper()
	b, err := bundle.Pack(Module(funcs), definition, build)
	if err != nil {
		t.Fatalf("pack bundle: %v", err)
	}
	return b
}

// Archive wraps a payload into an archive for name.
func Archive(t testing.TB, name string, payload []byte) []byte {
	t.Helper()
	b, err := bundle.Archive(name, "", "", payload)
	if err != nil {
		t.Fatalf("archive bundle: %v", err)
	}
	return b
}

// Server serves in-memory files and counts requests per path.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]*atomic.Int64
	block chan struct{}
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		files: make(map[string][]byte),
		hits:  make(map[string]*atomic.Int64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Put serves content at path.
func (s *Server) Put(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// Publish serves content at path and its correct digest at path+".sri",
// returning the full location.
func (s *Server) Publish(path string, content []byte) string {
	s.Put(path, content)
	s.Put(path+".sri", []byte(integrity.Digest(content)+"\n"))
	return s.URL + path
}

// Hold makes payload requests block until Release is called. Sidecar
// requests are still served.
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = make(chan struct{})
}

// Release unblocks held requests.
func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block != nil {
		close(s.block)
		s.block = nil
	}
}

// Hits returns how many requests were made for path.
func (s *Server) Hits(path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.hits[path]; ok {
		return c.Load()
	}
	return 0
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.hits[r.URL.Path]
	if !ok {
		c = new(atomic.Int64)
		s.hits[r.URL.Path] = c
	}
	c.Add(1)
	content, found := s.files[r.URL.Path]
	block := s.block
	s.mu.Unlock()

	if block != nil && !strings.HasSuffix(r.URL.Path, ".sri") {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}

	if !found {
		http.Error(w, "no such bundle", http.StatusNotFound)
		return
	}
	_, _ = w.Write(content)
}

func encodeLEB128s(v int32) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}
