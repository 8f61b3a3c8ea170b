package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/assetcache"
	"github.com/anshumat/budgetbox/internal/config"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Serve the web app through the offline shell cache",
	Long: `Front the budget web app with the offline asset cache.

On startup the shell assets listed in the manifest are pre-fetched into
a versioned cache generation; older generations are deleted. While
running, read requests are served from cache when the upstream is
unreachable, and mutation requests always go to the network.

The manifest path, upstream URL, and bind address come from the
configuration (shell_manifest, shell_upstream, shell_listen_addr).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		manifest, err := assetcache.LoadManifest(cfg.ShellManifest)
		if err != nil {
			fatalf("failed to load shell manifest: %v", err)
		}

		h, err := assetcache.New(cfg.ShellUpstream, cfg.CacheDir(), manifest, nil)
		if err != nil {
			fatalf("failed to create shell cache: %v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := h.Activate(ctx); err != nil {
			fatalf("failed to activate shell cache: %v", err)
		}

		srv := &http.Server{
			Addr:    cfg.ShellListenAddr,
			Handler: h,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Error: shell server failed: %v\n", err)
				cancel()
			}
		}()

		fmt.Printf("Shell cache v%d serving %s on %s\n", manifest.Version, cfg.ShellUpstream, cfg.ShellListenAddr)
		fmt.Println("Press Ctrl+C to stop...")

		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
