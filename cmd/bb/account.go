package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/config"
	"github.com/anshumat/budgetbox/internal/session"
	"github.com/anshumat/budgetbox/internal/transport"
)

var registerCmd = &cobra.Command{
	Use:   "register <email> <password>",
	Short: "Create an account on the budget server",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		client := transport.NewClient(cfg.ServerURL)
		ok, message, err := client.Register(cmd.Context(), args[0], args[1])
		if err != nil {
			fatalf("register failed: %v", err)
		}
		if !ok {
			fatalf("%s", message)
		}

		fmt.Println(message)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Log in and switch the local identity",
	Long: `Log in to the budget server and store the session locally.

Subsequent commands sync the snapshot belonging to the logged-in email.
Without a session, bb falls back to the built-in seed identity.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		client := transport.NewClient(cfg.ServerURL)
		token, err := client.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			fatalf("login failed: %v", err)
		}

		if err := session.Save(cfg.DataDir, &session.Session{
			Email: args[0],
			Token: token,
		}); err != nil {
			fatalf("failed to save session: %v", err)
		}

		fmt.Printf("Logged in as %s\n", args[0])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatalf("%v", err)
		}

		if err := session.Clear(cfg.DataDir); err != nil {
			fatalf("failed to clear session: %v", err)
		}

		fmt.Printf("Logged out; using %s\n", session.SeedIdentity)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
