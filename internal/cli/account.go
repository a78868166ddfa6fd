package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ─── Account CLI ────────────────────────────────────────────────────────────
// Operator commands for owner balances. Grants are the only way coins enter
// an account; job submissions only ever reserve.

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountGrantCmd)
	accountCmd.AddCommand(accountBalanceCmd)
	accountCmd.AddCommand(accountLedgerCmd)

	accountGrantCmd.Flags().StringP("reason", "r", "Manual grant", "Ledger reason")
	accountLedgerCmd.Flags().IntP("limit", "n", 20, "Entries to show")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage owner balances",
}

// ─── account grant ──────────────────────────────────────────────────────────

var accountGrantCmd = &cobra.Command{
	Use:   "grant OWNER_ID AMOUNT",
	Short: "Credit coins to an owner",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountGrant,
}

func runAccountGrant(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", args[1])
	}
	reason, _ := cmd.Flags().GetString("reason")

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	bal, err := db.Grant(context.Background(), args[0], amount, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Granted %d coins to %s (balance %d)\n", amount, args[0], bal)
	return nil
}

// ─── account balance ────────────────────────────────────────────────────────

var accountBalanceCmd = &cobra.Command{
	Use:   "balance OWNER_ID",
	Short: "Show an owner's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		bal, err := db.Balance(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d coins\n", args[0], bal)
		return nil
	},
}

// ─── account ledger ─────────────────────────────────────────────────────────

var accountLedgerCmd = &cobra.Command{
	Use:   "ledger OWNER_ID",
	Short: "Show recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountLedger,
}

func runAccountLedger(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Entries(context.Background(), args[0], limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No ledger entries for %s.\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tOUTCOME\tBALANCE\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.Outcome, e.BalanceAfter, e.Reason)
	}
	return tw.Flush()
}
