package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"moneyguard/internal/core"
)

type transactionFlags struct {
	txType   string
	amount   string
	category string
	date     string
	comment  string
}

func (f *transactionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.txType, "type", "expense", "income or expense")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.category, "category", "", "category id (expenses only)")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.comment, "comment", "", "free text comment")
}

// apply overwrites in with the flags that were set on cmd.
func (f *transactionFlags) apply(cmd *cobra.Command, in *core.TransactionInput) error {
	flags := cmd.Flags()
	if flags.Changed("type") || in.Type == "" {
		in.Type = core.TransactionType(strings.ToUpper(f.txType))
	}
	if flags.Changed("amount") {
		m, err := core.ParseAmount(f.amount)
		if err != nil {
			return err
		}
		in.Amount = m
	}
	if flags.Changed("category") {
		in.CategoryID = core.ID(f.category)
	}
	if flags.Changed("date") {
		d, err := time.Parse(time.DateOnly, f.date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", f.date, err)
		}
		in.Date = d
	}
	if flags.Changed("comment") {
		in.Comment = f.comment
	}
	return nil
}

func (a *App) newTransactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and edit transactions",
	}
	cmd.AddCommand(a.newTransactionsListCmd(), a.newTransactionsAddCmd(), a.newTransactionsUpdateCmd(), a.newTransactionsDeleteCmd())
	return cmd
}

func (a *App) newTransactionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			txs, err := a.client.Transactions.List(ctx)
			if err != nil {
				return err
			}
			categories, err := a.client.Transactions.Categories(ctx)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				cmd.Println("No transactions yet")
				return nil
			}

			names := core.CategoryNames(categories)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTYPE\tCATEGORY\tCOMMENT\tSUM")
			for _, t := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, core.FormatDate(t.TransactionDate), t.Type.Sign(), t.CategoryName(names),
					t.Comment, core.FormatCurrency(t.Amount))
			}
			return w.Flush()
		},
	}
}

func (a *App) newTransactionsAddCmd() *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			in := core.TransactionInput{Date: time.Now()}
			if err := flags.apply(cmd, &in); err != nil {
				return err
			}
			tx, err := a.client.Transactions.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			cmd.Printf("Added %s %s (id %s)\n", tx.Type.Sign(), core.FormatCurrency(tx.Amount), tx.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *App) newTransactionsUpdateCmd() *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			original, err := a.client.Transactions.Find(ctx, core.ID(args[0]))
			if err != nil {
				return err
			}

			in := core.TransactionInput{
				Type:       original.Type,
				Amount:     core.MoneyFromFloat(original.Amount),
				CategoryID: original.CategoryID,
				Comment:    original.Comment,
			}
			if d, err := core.ParseDate(original.TransactionDate); err == nil {
				in.Date = d
			}
			if err := flags.apply(cmd, &in); err != nil {
				return err
			}

			tx, err := a.client.Transactions.Update(ctx, original, in)
			if err != nil {
				return err
			}
			cmd.Printf("Updated transaction %s\n", tx.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *App) newTransactionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.client.Transactions.Delete(cmd.Context(), core.ID(args[0])); err != nil {
				return err
			}
			cmd.Printf("Deleted transaction %s\n", args[0])
			return nil
		},
	}
}
