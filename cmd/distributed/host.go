package main

import (
	"sync"

	"go.uber.org/zap"

	distributed "github.com/wippyai/wasm-distributed"
)

// consoleHost stands in for a UI application: it keeps what bundles
// register so the commands can report it.
type consoleHost struct {
	logger       *zap.Logger
	components   map[string]*distributed.Unit
	directives   map[string]*distributed.Unit
	dependencies map[string]any
	mu           sync.Mutex
}

func newConsoleHost(logger *zap.Logger) *consoleHost {
	return &consoleHost{
		logger:       logger,
		components:   make(map[string]*distributed.Unit),
		directives:   make(map[string]*distributed.Unit),
		dependencies: make(map[string]any),
	}
}

func (h *consoleHost) RegisterComponent(name string, unit *distributed.Unit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("component registered", zap.String("component", name))
	h.components[name] = unit
	return nil
}

func (h *consoleHost) RegisterDirective(name string, unit *distributed.Unit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("directive registered", zap.String("directive", name))
	h.directives[name] = unit
	return nil
}

func (h *consoleHost) ProvideDependency(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("dependency provided", zap.String("dependency", name))
	h.dependencies[name] = value
	return nil
}

func (h *consoleHost) installed() (components, directives int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.components), len(h.directives)
}
