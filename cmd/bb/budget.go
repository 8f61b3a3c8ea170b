package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/anshumat/budgetbox/internal/budget"
)

var setCmd = &cobra.Command{
	Use:   "set <category> <amount>",
	Short: "Set one budget category amount",
	Long: `Set one category of the monthly budget.

Categories: income, bills, food, transport, subs, misc.

The edit is applied to the local snapshot immediately and stamped with
the current time. It is not validated or clamped; negative amounts are
stored as given. Run 'bb sync' (or keep 'bb daemon' running) to
reconcile with the server.

Example usage:
  bb set income 52000
  bb set food 4500.50`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		field, err := budget.ParseField(args[0])
		if err != nil {
			fatalf("%v", err)
		}

		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fatalf("invalid amount %q", args[1])
		}

		ctx := cmd.Context()
		env, err := openClient(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer env.close()

		if err := env.store.UpdateFieldContext(ctx, field, value); err != nil {
			fatalf("failed to update %s: %v", field, err)
		}

		snap, err := env.store.CurrentContext(ctx)
		if err != nil {
			fatalf("failed to read snapshot: %v", err)
		}

		fmt.Printf("%s = %.2f (%s)\n", field, value, snap.Status)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current budget snapshot",
	Long: `Show all budget categories from the local snapshot, the computed
remaining balance, and the sync state.

Works offline; this never contacts the server.`,
	Args: cobra.NoArgs,
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

		fmt.Printf("Budget for %s\n\n", env.store.Identity())
		spent := 0.0
		for _, f := range budget.Fields() {
			v := snap.Get(f)
			fmt.Printf("  %-10s %12.2f\n", f, v)
			if f != budget.FieldIncome {
				spent += v
			}
		}
		fmt.Printf("  %-10s %12.2f\n\n", "remaining", snap.Income-spent)

		fmt.Printf("Status: %s", snap.Status)
		if snap.UpdatedAt > 0 {
			fmt.Printf(", updated %s", time.UnixMilli(snap.UpdatedAt).Format(time.RFC3339))
		}
		if snap.SyncedAt > 0 {
			fmt.Printf(", synced %s", time.UnixMilli(snap.SyncedAt).Format(time.RFC3339))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(showCmd)
}
