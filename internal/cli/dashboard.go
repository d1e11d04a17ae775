package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"moneyguard/internal/core"
	"moneyguard/internal/log"
)

func (a *App) newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			balance, err := a.client.Dashboard.FormattedBalance(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Balance: %s\n", balance)
			return nil
		},
	}
}

func (a *App) newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List transaction categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			categories, err := a.client.Transactions.Categories(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Type)
			}
			return w.Flush()
		},
	}
}

func (a *App) newSummaryCmd() *cobra.Command {
	now := time.Now()
	var month, year int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the statistics of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("invalid month %d", month)
			}
			stats, err := a.client.Dashboard.Statistics(cmd.Context(), month, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d\n", time.Month(stats.Month), stats.Year)
			if !stats.HasExpenseData() {
				fmt.Fprintln(out, "No expenses in this period")
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tSUM")
				for _, c := range stats.ExpenseCategories {
					fmt.Fprintf(w, "%s\t%s\n", c.Name, core.FormatCurrency(c.Sum))
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Expenses: %s\nIncome: %s\n",
				core.FormatCurrency(stats.TotalExpenses), core.FormatCurrency(stats.TotalIncome))
			return nil
		},
	}

	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month, 1-12")
	cmd.Flags().IntVar(&year, "year", now.Year(), "year")
	return cmd
}

func (a *App) newRatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Show USD and EUR exchange rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.client.Dashboard.CurrencyRates(cmd.Context())
			if err != nil {
				a.logger.Warn("Currency feed unavailable, showing sample rates", log.FieldError, err.Error())
				cmd.PrintErrln("Currency feed unavailable, showing sample rates")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CURRENCY\tPURCHASE\tSALE")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", r.Currency, r.Buy, r.Sale)
			}
			return w.Flush()
		},
	}
}

func (a *App) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export all transactions to the configured spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ref, n, err := a.client.Transactions.Export(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Exported %d transactions to %s\n", n, ref)
			return nil
		},
	}
}
