// Package version classifies the drift between the host library version and
// the version a module was built against.
//
// Comparison is lenient: dot separated segments compared numerically left to
// right, with non-numeric segments counted as zero. Pre-release tags are not
// ordered. Failures never surface as errors; they yield Unknown.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// State is the module's version relative to the host.
type State string

const (
	Older   State = "older"
	Newer   State = "newer"
	Equal   State = "equal"
	Unknown State = "unknown"
)

// Result is the outcome of a comparison.
type Result struct {
	Host   string
	Module string
	State  State
}

// Compatible reports whether the module was built against the host version.
func (r Result) Compatible() bool {
	return r.State == Equal
}

// Comparator compares versions, logging unparsable input.
type Comparator struct {
	logger *zap.Logger
}

// NewComparator creates a Comparator. A nil logger disables logging.
func NewComparator(logger *zap.Logger) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{logger: logger}
}

// Compare compares without logging.
func Compare(host, module string) Result {
	return NewComparator(nil).Compare(host, module)
}

// Compare classifies module relative to host.
func (c *Comparator) Compare(host, module string) (res Result) {
	res = Result{Host: host, Module: module, State: Unknown}
	defer func() {
		if r := recover(); r != nil {
			res.State = Unknown
			c.warn(host, module, fmt.Errorf("panic: %v", r))
		}
	}()

	h, err := segments(host)
	if err != nil {
		c.warn(host, module, err)
		return res
	}
	m, err := segments(module)
	if err != nil {
		c.warn(host, module, err)
		return res
	}

	res.State = order(h, m)
	return res
}

func (c *Comparator) warn(host, module string, err error) {
	c.logger.Warn("cannot compare versions",
		zap.String("host", host),
		zap.String("module", module),
		zap.Error(err))
}

func order(host, module []int64) State {
	n := len(host)
	if len(module) > n {
		n = len(module)
	}
	for i := 0; i < n; i++ {
		var h, m int64
		if i < len(host) {
			h = host[i]
		}
		if i < len(module) {
			m = module[i]
		}
		switch {
		case m > h:
			return Newer
		case m < h:
			return Older
		}
	}
	return Equal
}

// segments splits v into numeric segments. A leading "v" is ignored.
func segments(v string) ([]int64, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}

	parts := strings.Split(v, ".")
	out := make([]int64, len(parts))
	digits := false
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty segment in %q", v)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return nil, fmt.Errorf("segment %q out of range", p)
			}
			// non-numeric segment counts as zero
			continue
		}
		if n < 0 {
			return nil, fmt.Errorf("negative segment %q", p)
		}
		out[i] = n
		digits = true
	}
	if !digits {
		return nil, fmt.Errorf("no numeric segment in %q", v)
	}
	return out, nil
}
