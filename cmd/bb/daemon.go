package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/daemon"
	syncpkg "github.com/anshumat/budgetbox/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync scheduler",
	Long: `Keep the local snapshot reconciled with the server.

The daemon watches the local database for edits made by other bb
invocations, syncs on a debounced trigger after each change, re-syncs
on a fixed interval to pick up server-side changes, and syncs
immediately when connectivity comes back after an offline stretch.

Set log_file in config.yaml (or BB_LOG_FILE) to write rotated logs
instead of stderr.

Example usage:
  bb daemon                     # run in the foreground
  bb daemon &                   # or background it yourself`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		env, err := openClient(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer env.close()

		engine := syncpkg.New(env.store, env.client, env.monitor, nil)

		d, err := daemon.New(env.store, engine, env.monitor, &daemon.Config{
			SyncInterval:     env.cfg.SyncInterval,
			DebounceInterval: env.cfg.DebounceInterval,
			LogFile:          env.cfg.LogFile,
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		fmt.Printf("Sync daemon running for %s against %s\n", env.store.Identity(), env.cfg.ServerURL)
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil {
			fatalf("daemon error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
