package hotreload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/constants"
)

// Reloadable represents a component that can be reloaded
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Coordinator batches watcher events and reloads every registered
// component once per quiet period
type Coordinator struct {
	watcher      *Watcher
	logger       *zap.Logger
	reloadables  map[string]Reloadable
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	debounceTime time.Duration
	wg           sync.WaitGroup
	isRunning    bool
	stopped      bool
}

// NewCoordinator creates a new reload coordinator
func NewCoordinator(watcher *Watcher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		logger:       logger,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: constants.DefaultHotReloadDelay,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	c.logger.Info("Registered reloadable component", zap.String("name", name))
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reloadables, name)
	c.logger.Info("Unregistered reloadable component", zap.String("name", name))
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return errors.New("coordinator already running")
	}
	if c.stopped {
		c.mu.Unlock()
		return errors.New("coordinator stopped")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	c.logger.Info("Hot reload coordinator started")
	return nil
}

// Stop stops the hot reload coordination and the watcher
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.watcher.Stop()

	c.logger.Info("Hot reload coordinator stopped")
}

// coordinateReloads collects events until the debounce timer fires
func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending []Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			pending = append(pending, event)

			if timer == nil {
				timer = time.NewTimer(c.DebounceTime())
			} else {
				timer.Reset(c.DebounceTime())
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) > 0 {
				c.triggerReload(pending)
				pending = pending[:0]
			}
		}
	}
}

// triggerReload reloads all registered components concurrently
func (c *Coordinator) triggerReload(events []Event) {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.reloadables))
	for _, r := range c.reloadables {
		reloadables = append(reloadables, r)
	}
	c.mu.RUnlock()

	if len(reloadables) == 0 {
		return
	}
	sort.Slice(reloadables, func(i, j int) bool {
		return reloadables[i].Name() < reloadables[j].Name()
	})

	c.logger.Info("Triggering hot reload", zap.Int("events", len(events)))
	for _, event := range events {
		c.logger.Debug("Reload triggered by",
			zap.String("path", event.Path),
			zap.String("operation", event.Op.String()),
		)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reloadables))

	for i, reloadable := range reloadables {
		wg.Add(1)
		go func(i int, r Reloadable) {
			defer wg.Done()
			if err := r.Reload(c.ctx); err != nil {
				errs[i] = fmt.Errorf("failed to reload %s: %w", r.Name(), err)
				return
			}
			c.logger.Info("Successfully reloaded component", zap.String("name", r.Name()))
		}(i, reloadable)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Hot reload completed with errors", zap.Error(err))
		return
	}
	c.logger.Info("Hot reload completed successfully")
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

// DebounceTime returns the current quiet period
func (c *Coordinator) DebounceTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
