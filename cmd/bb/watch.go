package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/config"
	"github.com/anshumat/budgetbox/internal/server"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the server's event feed",
	Long: `Connect to the budget server's WebSocket feed and print each event
as it arrives: accepted pushes (with the server timestamp and revision
count) and account registrations.

Example usage:
  bb watch`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		feedURL, err := feedURLFor(cfg.ServerURL)
		if err != nil {
			fatalf("%v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, feedURL, nil)
		if err != nil {
			fatalf("failed to connect to %s: %v", feedURL, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", feedURL)

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fatalf("feed closed: %v", err)
			}

			var msg server.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				fmt.Printf("%s\n", data)
				continue
			}
			printEvent(msg)
		}
	},
}

// feedURLFor converts the HTTP server URL into its WebSocket endpoint.
func feedURLFor(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

func printEvent(msg server.Message) {
	stamp := msg.Timestamp.Format(time.RFC3339)

	switch msg.Type {
	case server.MessageTypeBudgetUpdate:
		var d server.BudgetUpdateData
		if err := json.Unmarshal(msg.Data, &d); err == nil {
			fmt.Printf("%s  push from %s (server time %d, revision %d)\n", stamp, d.Email, d.UpdatedAt, d.Revision)
			return
		}
	case server.MessageTypeAccount:
		fmt.Printf("%s  account event: %s\n", stamp, msg.Data)
		return
	}

	fmt.Printf("%s  %s %s\n", stamp, msg.Type, msg.Data)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
