package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	syncpkg "github.com/anshumat/budgetbox/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local snapshot with the server once",
	Long: `Run one sync attempt against the budget server.

The newer side wins, judged by timestamp over the whole snapshot:
  - local newer than server: the local snapshot is pushed
  - server newer than local: the server snapshot replaces the local one
  - equal timestamps: nothing is transferred

Requires connectivity; when offline the command fails without touching
local state. There are no retries; run again or use 'bb daemon'.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		env, err := openClient(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer env.close()

		if !env.monitor.Online() {
			fatalf("offline: cannot reach %s", env.cfg.ServerURL)
		}

		if err := env.store.SetSyncPendingContext(ctx); err != nil {
			fatalf("failed to mark sync pending: %v", err)
		}

		engine := syncpkg.New(env.store, env.client, env.monitor, log.New(io.Discard, "", 0))
		result, err := engine.Sync(ctx)
		if err != nil {
			if errors.Is(err, syncpkg.ErrOffline) {
				fatalf("offline: cannot reach %s", env.cfg.ServerURL)
			}
			fatalf("sync failed: %v", err)
		}

		switch result.Outcome {
		case syncpkg.OutcomePushed:
			fmt.Printf("Pushed local snapshot (server time %s)\n", time.UnixMilli(result.SyncedAt).Format(time.RFC3339))
		case syncpkg.OutcomePulled:
			fmt.Printf("Pulled server snapshot from %s\n", time.UnixMilli(result.SyncedAt).Format(time.RFC3339))
		default:
			fmt.Println("Already up to date")
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and connectivity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		env, err := openClient(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer env.close()

		snap, err := env.store.CurrentContext(ctx)
		if err != nil {
			fatalf("failed to read snapshot: %v", err)
		}

		fmt.Printf("Identity:     %s\n", env.store.Identity())
		fmt.Printf("Server:       %s\n", env.cfg.ServerURL)
		if env.monitor.Online() {
			fmt.Printf("Connectivity: online\n")
		} else {
			fmt.Printf("Connectivity: offline\n")
		}
		fmt.Printf("Sync status:  %s\n", snap.Status)
		if snap.UpdatedAt > 0 {
			fmt.Printf("Updated:      %s\n", time.UnixMilli(snap.UpdatedAt).Format(time.RFC3339))
		}
		if snap.SyncedAt > 0 {
			fmt.Printf("Last synced:  %s\n", time.UnixMilli(snap.SyncedAt).Format(time.RFC3339))
		} else {
			fmt.Printf("Last synced:  never\n")
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
