package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/config"
	"github.com/anshumat/budgetbox/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the budget server",
	Long: `Start the budget server: the HTTP sync API plus a WebSocket event
feed announcing accepted pushes.

Endpoints:
  GET  /budget/latest?email=  latest stored snapshot for an identity
  POST /budget/sync           append a pushed snapshot
  POST /register              create an account
  POST /login                 authenticate
  GET  /ws                    event feed (see 'bb watch')
  GET  /health                liveness check

Every accepted push is stored as a new row; history is never
overwritten in place.

Example usage:
  bb serve                    # listen on the configured address
  bb serve --addr :9000       # override the bind address`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ListenAddr
		}

		st, err := server.OpenStore(filepath.Join(cfg.DataDir, "server.db"))
		if err != nil {
			fatalf("failed to open server store: %v", err)
		}
		defer st.Close()

		s := server.NewServer(st, &server.Config{
			Addr:   addr,
			Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
		})

		if err := s.Start(); err != nil {
			fatalf("failed to start server: %v", err)
		}

		fmt.Printf("Budget server listening on %s\n", s.Addr())
		fmt.Printf("Event feed: ws://%s/ws\n", s.Addr())
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := s.Stop(); err != nil {
			fatalf("shutdown error: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Bind address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
