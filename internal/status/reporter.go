package status

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// Check reports whether one aspect of the service is healthy.
type Check func() bool

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(r *Reporter) {
		r.clock = clock
	}
}

// Reporter builds status documents from an immutable manifest snapshot.
type Reporter struct {
	manifest  atomic.Pointer[Manifest]
	clock     Clock
	startedAt time.Time

	mu     sync.RWMutex
	checks map[string]Check
}

// NewReporter returns a Reporter for the given manifest.
func NewReporter(manifest Manifest, opts ...Option) (*Reporter, error) {
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	r := &Reporter{
		clock:  RealClock{},
		checks: make(map[string]Check),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.clock.Now()
	r.manifest.Store(&manifest)

	return r, nil
}

// Manifest returns the snapshot currently in effect.
func (r *Reporter) Manifest() Manifest {
	return *r.manifest.Load()
}

// SetManifest swaps the snapshot. Invalid manifests are rejected and the
// previous snapshot stays in effect.
func (r *Reporter) SetManifest(manifest Manifest) error {
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	r.manifest.Store(&manifest)
	return nil
}

// RegisterCheck adds or replaces a named check used by GetReport.
func (r *Reporter) RegisterCheck(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// CheckNames returns the registered check names in sorted order.
func (r *Reporter) CheckNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartedAt returns when the reporter was created.
func (r *Reporter) StartedAt() time.Time {
	return r.startedAt
}

// GetHealth returns the liveness document. It always reports OK: a process
// able to answer is alive.
func (r *Reporter) GetHealth() StatusResponse {
	m := r.manifest.Load()
	return StatusResponse{
		Status:    StatusOK,
		Service:   m.Service,
		Timestamp: Timestamp(r.clock.Now()),
		Version:   m.Version,
	}
}

// GetWelcome returns the identity document.
func (r *Reporter) GetWelcome() Welcome {
	return r.manifest.Load().Welcome
}

// GetReport runs every registered check and returns the detailed document.
func (r *Reporter) GetReport() Report {
	r.mu.RLock()
	results := make(map[string]bool, len(r.checks))
	for name, check := range r.checks {
		results[name] = check()
	}
	r.mu.RUnlock()

	liveness := StatusOK
	for _, ok := range results {
		if !ok {
			liveness = StatusDegraded
			break
		}
	}

	now := r.clock.Now()
	m := r.manifest.Load()
	return Report{
		Status:    liveness,
		Service:   m.Service,
		Version:   m.Version,
		Timestamp: Timestamp(now),
		StartedAt: Timestamp(r.startedAt),
		Uptime:    now.Sub(r.startedAt).Truncate(time.Second).String(),
		Checks:    results,
	}
}
