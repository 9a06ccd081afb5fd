// Package hotreload watches configuration files and reloads registered
// components when they change.
package hotreload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager manages the entire hot reload system
type Manager struct {
	watcher     *Watcher
	coordinator *Coordinator
	logger      *zap.Logger
	mu          sync.Mutex
	started     bool
}

// NewManager creates a new hot reload manager
func NewManager(logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("hotreload")

	watcher, err := NewWatcher(logger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		watcher:     watcher,
		coordinator: NewCoordinator(watcher, logger),
		logger:      logger,
	}, nil
}

// AddWatch adds a file to watch
func (m *Manager) AddWatch(path string) error {
	return m.watcher.Add(path)
}

// RegisterReloadable registers a reloadable component
func (m *Manager) RegisterReloadable(reloadable Reloadable) error {
	return m.coordinator.Register(reloadable)
}

// Start starts the hot reload system
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if err := m.coordinator.Start(); err != nil {
		return err
	}

	m.started = true
	m.logger.Info("Hot reload system started", zap.Strings("files", m.watcher.Files()))
	return nil
}

// SetDebounceTime sets the debounce time for reload events
func (m *Manager) SetDebounceTime(d time.Duration) {
	m.coordinator.SetDebounceTime(d)
}

// IsRunning returns whether the hot reload system is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Shutdown stops watching and waits for an in-flight reload to finish or
// for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.coordinator.Stop()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Hot reload system stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
