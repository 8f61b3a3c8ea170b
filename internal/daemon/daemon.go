// Package daemon provides the background sync scheduler for the client.
//
// The daemon owns retry and trigger policy, which the sync engine
// deliberately does not: it re-attempts reconciliation
//  1. when the local store database changes on disk (another bb process
//     edited a field), debounced so rapid edits batch into one attempt;
//  2. on a fixed interval, so server-side changes are eventually pulled;
//  3. when connectivity is regained after being offline.
//
// Each attempt marks the record sync-pending first so readers see the
// in-flight state, then invokes the engine once. Failures are logged
// and left for the next trigger; there is no backoff inside an attempt.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/anshumat/budgetbox/internal/budget"
	"github.com/anshumat/budgetbox/internal/connectivity"
	"github.com/anshumat/budgetbox/internal/store"
	syncpkg "github.com/anshumat/budgetbox/internal/sync"
)

// Runner runs one sync attempt. Satisfied by *syncpkg.Engine.
type Runner interface {
	Sync(ctx context.Context) (syncpkg.Result, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to attempt a sync regardless of local
	// changes, so server-side edits are eventually pulled.
	SyncInterval time.Duration

	// DebounceInterval is how long to wait after a local change before
	// syncing. This batches rapid edits together.
	DebounceInterval time.Duration

	// LogFile, when set, routes daemon logs through a size-rotated
	// file instead of stderr.
	LogFile string

	// Logger for daemon activity. Overrides LogFile when set.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     30 * time.Second,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates sync triggers for one client store.
type Daemon struct {
	store   *store.Store
	engine  Runner
	monitor *connectivity.Monitor
	config  *Config

	watcher *fsnotify.Watcher

	dirtyMu sync.Mutex
	dirty   bool
	dirtyAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon instance.
//
// The daemon watches the directory containing the store's database file
// for changes. Use Start() to begin scheduling.
func New(st *store.Store, engine Runner, monitor *connectivity.Monitor, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 30 * time.Second
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		if config.LogFile != "" {
			config.Logger = log.New(&lumberjack.Logger{
				Filename:   config.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}, "[daemon] ", log.LstdFlags)
		} else {
			config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		store:   st,
		engine:  engine,
		monitor: monitor,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
//  1. Start the connectivity monitor
//  2. Attempt an initial sync
//  3. Watch the store database for local changes
//  4. Sync on debounced changes, the periodic interval, and
//     connectivity-regained signals
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.monitor.Start(d.ctx)
	}()

	watchDir := filepath.Dir(d.store.Path())
	if err := d.watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch store directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", watchDir)

	// Give the monitor's first probe a moment, then try to catch up
	// with the server.
	d.monitor.CheckNow(d.ctx)
	d.attemptSync("startup")

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.scheduleLoop()
	go d.connectivityLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping sync daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Sync daemon stopped")
	return nil
}

// watchFileEvents marks the store dirty when its database changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	base := filepath.Base(d.store.Path())

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// The database writes through the main file plus its
			// -wal and -shm side files.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}

			d.markDirty()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) markDirty() {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	d.dirty = true
	d.dirtyAt = time.Now()
}

// consumeDirty reports whether a debounced change is ready to process
// and clears the flag if so.
func (d *Daemon) consumeDirty() bool {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()

	if !d.dirty || time.Since(d.dirtyAt) < d.config.DebounceInterval {
		return false
	}
	d.dirty = false
	return true
}

// scheduleLoop drives the debounced-change and periodic triggers.
func (d *Daemon) scheduleLoop() {
	defer d.wg.Done()

	debounce := time.NewTicker(d.config.DebounceInterval)
	defer debounce.Stop()

	periodic := time.NewTicker(d.config.SyncInterval)
	defer periodic.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-debounce.C:
			if !d.consumeDirty() {
				continue
			}

			// The daemon's own bookkeeping writes also land in the
			// watcher; only an unsynced snapshot warrants an attempt.
			snap, err := d.store.CurrentContext(d.ctx)
			if err != nil {
				d.config.Logger.Printf("Failed to read snapshot: %v", err)
				continue
			}
			if snap.Status == budget.StatusSynced {
				continue
			}

			d.attemptSync("local change")

		case <-periodic.C:
			d.attemptSync("periodic")
		}
	}
}

// connectivityLoop re-syncs as soon as connectivity comes back.
func (d *Daemon) connectivityLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case online, ok := <-d.monitor.Changes():
			if !ok {
				return
			}
			if online {
				d.attemptSync("connectivity regained")
			}
		}
	}
}

// attemptSync runs one guarded sync attempt.
func (d *Daemon) attemptSync(trigger string) {
	if !d.monitor.Online() {
		d.config.Logger.Printf("Sync skipped (%s): offline", trigger)
		return
	}

	if err := d.store.SetSyncPendingContext(d.ctx); err != nil {
		d.config.Logger.Printf("Failed to mark sync pending: %v", err)
		return
	}

	result, err := d.engine.Sync(d.ctx)
	switch {
	case errors.Is(err, syncpkg.ErrOffline):
		d.config.Logger.Printf("Sync aborted (%s): went offline", trigger)
	case errors.Is(err, syncpkg.ErrSyncInFlight):
		// Another trigger won the race; its attempt covers this one.
	case err != nil:
		d.config.Logger.Printf("Sync failed (%s): %v", trigger, err)
	default:
		d.config.Logger.Printf("Sync %s (%s): syncedAt=%d", result.Outcome, trigger, result.SyncedAt)
	}
}
