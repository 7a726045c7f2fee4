package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"moneytrack/internal/core"
)

// requireLedger fails when nobody is signed in or the initial refresh failed.
func (rt *appState) requireLedger() error {
	if !rt.app.Session.Authenticated() {
		return errNotSignedIn
	}
	return rt.app.Store.Err()
}

func listCmd(rt *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transactions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLedger(); err != nil {
				return err
			}
			records := rt.app.Store.Records()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions yet. Use 'moneytrack add' to record one.")
				return nil
			}
			return writeRecords(cmd.OutOrStdout(), newestFirst(records))
		},
	}
}

func addCmd(rt *appState) *cobra.Command {
	var expense bool
	cmd := &cobra.Command{
		Use:   "add <description> <amount>",
		Short: "Record a transaction dated today",
		Long: `Record a transaction dated today.

Positive amounts are income and negative amounts are expenses. Put "--"
before a negative amount, or pass --expense with a positive one:

  moneytrack add Salary 1000000
  moneytrack add -- Lunch -25000
  moneytrack add --expense Lunch 25000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rt.app.Session.Authenticated() {
				return errNotSignedIn
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[1])
			}
			if expense && amount.IsPositive() {
				amount = amount.Neg()
			}
			created, err := rt.app.Store.Create(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s %q (id %s)\n",
				created.Kind(), core.FormatAmount(created.Amount), created.Description, created.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&expense, "expense", "e", false, "record the amount as an expense")
	return cmd
}

func deleteCmd(rt *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rt.app.Session.Authenticated() {
				return errNotSignedIn
			}
			if err := rt.app.Store.Remove(cmd.Context(), core.RecordID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func summaryCmd(rt *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show balance, income and expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLedger(); err != nil {
				return err
			}
			return writeTotals(cmd.OutOrStdout(), rt.app.Store.Totals())
		},
	}
}

// newestFirst orders records by date, keeping store order within a day.
func newestFirst(records []core.Transaction) []core.Transaction {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.OccurredOn.Compare(a.OccurredOn.Time)
	})
	return out
}

func writeRecords(w io.Writer, records []core.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tKIND\tAMOUNT\tDESCRIPTION")
	for _, t := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.OccurredOn, t.Kind(), core.FormatAmount(t.Amount), t.Description)
	}
	return tw.Flush()
}

func writeTotals(w io.Writer, totals core.Totals) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Balance:\t%s\t\n", core.FormatAmount(totals.Balance))
	fmt.Fprintf(tw, "Income:\t%s\t\n", core.FormatAmount(totals.Income))
	fmt.Fprintf(tw, "Expense:\t%s\t\n", core.FormatAmount(totals.Expense))
	return tw.Flush()
}
