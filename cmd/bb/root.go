package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/config"
	"github.com/anshumat/budgetbox/internal/connectivity"
	"github.com/anshumat/budgetbox/internal/session"
	"github.com/anshumat/budgetbox/internal/store"
	"github.com/anshumat/budgetbox/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "bb",
	Short: "Offline-first budget tracker with last-write-wins sync",
	Long: `bb tracks six monthly budget categories in a local database and
reconciles them with a budget server whenever connectivity allows.

Edits always land locally first and survive restarts. A sync pushes the
local snapshot when it is newer than the server copy, pulls the server
copy when the server is newer, and does nothing when both agree. The
whole snapshot is the unit of conflict resolution.

Typical usage:
  bb set income 52000         # edit locally (works offline)
  bb sync                     # reconcile once
  bb daemon                   # keep reconciling in the background
  bb serve                    # host the server side`,
	SilenceUsage: true,
}

// clientEnv bundles what a client-side command needs: resolved config,
// a transport client, a connectivity observation, and the open store.
type clientEnv struct {
	cfg     *config.Config
	client  *transport.Client
	monitor *connectivity.Monitor
	store   *store.Store
}

// openClient wires the client stack. The connectivity monitor is probed
// once so the store's status computation reflects current reachability;
// one-shot commands do not need the periodic loop.
func openClient(ctx context.Context) (*clientEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(cfg.ServerURL)
	monitor := connectivity.NewMonitor(client.Health, &connectivity.Config{
		ProbeInterval: cfg.ProbeInterval,
		Logger:        log.New(io.Discard, "", 0),
	})
	monitor.CheckNow(ctx)

	identity := session.Resolve(cfg.DataDir)
	st, err := store.Open(cfg.StorePath(), identity, monitor.Online)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	return &clientEnv{cfg: cfg, client: client, monitor: monitor, store: st}, nil
}

func (e *clientEnv) close() {
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
