package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anshumat/budgetbox/internal/budget"
	"github.com/anshumat/budgetbox/internal/connectivity"
	"github.com/anshumat/budgetbox/internal/store"
	syncpkg "github.com/anshumat/budgetbox/internal/sync"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *log.Logger {
	return log.New(discard{}, "", 0)
}

// fakeRunner counts sync attempts and settles the store the way a
// successful engine run would.
type fakeRunner struct {
	st    *store.Store
	calls atomic.Int64
	err   error
}

func (f *fakeRunner) Sync(ctx context.Context) (syncpkg.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return syncpkg.Result{}, f.err
	}
	now := time.Now().UnixMilli()
	if err := f.st.MarkSyncedContext(ctx, now); err != nil {
		return syncpkg.Result{}, err
	}
	return syncpkg.Result{Outcome: syncpkg.OutcomePushed, SyncedAt: now}, nil
}

type env struct {
	store   *store.Store
	runner  *fakeRunner
	monitor *connectivity.Monitor
	daemon  *Daemon
	cancel  context.CancelFunc
}

// startDaemon builds a daemon around a real store and a controllable
// probe, starts it, and tears everything down with the test.
func startDaemon(t *testing.T, reachable *atomic.Bool, config *Config) *env {
	t.Helper()

	path := filepath.Join(t.TempDir(), "budget.db")
	st, err := store.Open(path, "me@example.org", nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	probe := func(ctx context.Context) error {
		if reachable.Load() {
			return nil
		}
		return fmt.Errorf("unreachable")
	}
	monitor := connectivity.NewMonitor(probe, &connectivity.Config{
		ProbeInterval: 20 * time.Millisecond,
		Logger:        quietLogger(),
	})

	runner := &fakeRunner{st: st}

	if config == nil {
		config = &Config{}
	}
	if config.SyncInterval == 0 {
		config.SyncInterval = time.Hour
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 20 * time.Millisecond
	}
	config.Logger = quietLogger()

	d, err := New(st, runner, monitor, config)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	return &env{store: st, runner: runner, monitor: monitor, daemon: d, cancel: cancel}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDaemonSyncsOnStartup(t *testing.T) {
	var reachable atomic.Bool
	reachable.Store(true)

	e := startDaemon(t, &reachable, nil)

	waitFor(t, "startup sync", func() bool { return e.runner.calls.Load() >= 1 })
}

func TestDaemonSyncsOnLocalChange(t *testing.T) {
	var reachable atomic.Bool
	reachable.Store(true)

	e := startDaemon(t, &reachable, nil)
	waitFor(t, "startup sync", func() bool { return e.runner.calls.Load() >= 1 })
	base := e.runner.calls.Load()

	if err := e.store.UpdateField(budget.FieldFood, 1200); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	waitFor(t, "change-triggered sync", func() bool { return e.runner.calls.Load() > base })

	snap, err := e.store.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.Status != budget.StatusSynced {
		t.Errorf("status after sync = %s, want synced", snap.Status)
	}
}

func TestDaemonPeriodicSync(t *testing.T) {
	var reachable atomic.Bool
	reachable.Store(true)

	e := startDaemon(t, &reachable, &Config{SyncInterval: 30 * time.Millisecond})

	// Periodic attempts happen even with no local edits.
	waitFor(t, "periodic syncs", func() bool { return e.runner.calls.Load() >= 3 })
}

func TestDaemonSkipsWhileOffline(t *testing.T) {
	var reachable atomic.Bool // stays false

	e := startDaemon(t, &reachable, nil)

	if err := e.store.UpdateField(budget.FieldBills, 900); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := e.runner.calls.Load(); n != 0 {
		t.Errorf("offline daemon ran %d syncs, want 0", n)
	}

	snap, err := e.store.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.Status == budget.StatusSynced {
		t.Errorf("offline edit must not end up synced")
	}
}

func TestDaemonSyncsWhenConnectivityRegained(t *testing.T) {
	var reachable atomic.Bool // starts offline

	e := startDaemon(t, &reachable, nil)

	if err := e.store.UpdateField(budget.FieldMisc, 300); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := e.runner.calls.Load(); n != 0 {
		t.Fatalf("premature sync while offline: %d", n)
	}

	reachable.Store(true)

	waitFor(t, "reconnect sync", func() bool { return e.runner.calls.Load() >= 1 })
	waitFor(t, "record to settle", func() bool {
		snap, err := e.store.Current()
		return err == nil && snap.Status == budget.StatusSynced
	})
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
