package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/existflow/punch/internal/logger"
)

// AutoSync runs sync in the background: shortly after local punch files
// change, and on a fixed interval to pick up remote changes.
type AutoSync struct {
	run          func(ctx context.Context) *Summary
	dir          string
	debounceTime time.Duration
	pollInterval time.Duration
	pending      bool
	running      bool
	mu           sync.Mutex
	runMu        sync.Mutex
	stopCh       chan struct{}
	stopOnce     sync.Once
	onSync       func(*Summary) // Callback after every completed run
}

// NewAutoSync creates an auto-sync manager watching dir.
func NewAutoSync(run func(ctx context.Context) *Summary, dir string) *AutoSync {
	return &AutoSync{
		run:          run,
		dir:          dir,
		debounceTime: 5 * time.Second,  // Wait 5s after last change before syncing
		pollInterval: 60 * time.Second, // Poll remotes every minute
		stopCh:       make(chan struct{}),
	}
}

// SetIntervals overrides the debounce and poll intervals.
func (a *AutoSync) SetIntervals(debounce, poll time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debounceTime = debounce
	a.pollInterval = poll
}

// SetOnSync sets a callback called with the summary of every run
func (a *AutoSync) SetOnSync(callback func(*Summary)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSync = callback
}

// Run watches the punch directory until ctx is done or Stop is called.
func (a *AutoSync) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(a.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.dir, err)
	}
	logger.Info("Watching punches", logger.F("dir", a.dir))

	a.mu.Lock()
	poll := a.pollInterval
	a.mu.Unlock()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isPunchEvent(event) {
				logger.Debug("Punch changed", logger.F("file", event.Name), logger.F("op", event.Op))
				a.TriggerSync(ctx)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logger.F("error", err))
		case <-ticker.C:
			a.performSync(ctx)
		case <-ctx.Done():
			a.Stop()
			return nil
		case <-a.stopCh:
			return nil
		}
	}
}

func isPunchEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// TriggerSync marks that a sync is needed (debounced). Changes made by a
// running sync are ignored.
func (a *AutoSync) TriggerSync(ctx context.Context) {
	a.mu.Lock()
	if !a.pending && !a.running {
		a.pending = true
		go a.debouncedSync(ctx)
	}
	a.mu.Unlock()
}

func (a *AutoSync) debouncedSync(ctx context.Context) {
	a.mu.Lock()
	wait := a.debounceTime
	a.mu.Unlock()

	// Wait for debounce period
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		a.performSync(ctx)
	case <-ctx.Done():
	case <-a.stopCh:
	}
}

func (a *AutoSync) performSync(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.mu.Lock()
	a.pending = false
	a.running = true
	callback := a.onSync
	a.mu.Unlock()

	summary := a.run(ctx)

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	if callback != nil && summary != nil {
		callback(summary)
	}
}

// SyncNowIfPending performs an immediate sync if a change is waiting.
func (a *AutoSync) SyncNowIfPending(ctx context.Context) *Summary {
	a.mu.Lock()
	isPending := a.pending
	a.pending = false
	a.mu.Unlock()

	if !isPending {
		return nil
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.run(ctx)
}

// IsPending returns true if a sync is scheduled
func (a *AutoSync) IsPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Stop stops the auto-sync manager
func (a *AutoSync) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
}
