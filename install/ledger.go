package install

import (
	"sort"
	"sync"
)

// Ledger records the content hashes of installed modules for the lifetime
// of one host application.
type Ledger struct {
	keys map[string]struct{}
	mu   sync.Mutex
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{keys: make(map[string]struct{})}
}

// Add records key and reports whether it was not recorded before.
func (l *Ledger) Add(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

// Has reports whether key is recorded.
func (l *Ledger) Has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok
}

// Remove forgets key.
func (l *Ledger) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Keys returns the recorded keys, sorted.
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.keys))
	for k := range l.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset forgets every key.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = make(map[string]struct{})
}
