package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"moneyguard/internal/backend"
	"moneyguard/internal/config"
	"moneyguard/internal/log"
)

// App holds the state shared by the commands of one invocation.
type App struct {
	cfg     *config.Config
	logger  *log.Logger
	client  *backend.Client
	cleanup backend.CleanupFunc

	newFactory func(*log.Logger) backend.Factory
}

// NewApp creates an App that builds the client stack with the default factory.
func NewApp() *App {
	return &App{newFactory: backend.NewFactory}
}

// RootCmd creates the root command. The client stack is built before any
// subcommand runs and released by Close.
func (a *App) RootCmd(version string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:           "moneyguard",
		Short:         "Money Guard personal finance client",
		Long:          "Money Guard: track income and expenses, monthly statistics and currency rates from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Example: `  # Sign in and show the balance
  moneyguard login --email ann@example.com --password secret1
  moneyguard balance

  # Record an expense
  moneyguard transactions add --type expense --amount 12.50 --category 3 --comment lunch

  # Monthly statistics
  moneyguard summary --month 3 --year 2025

  # Keep subscribed data fresh and serve metrics
  moneyguard watch`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, debug)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.AddCommand(
		a.newLoginCmd(),
		a.newRegisterCmd(),
		a.newLogoutCmd(),
		a.newBalanceCmd(),
		a.newCategoriesCmd(),
		a.newTransactionsCmd(),
		a.newSummaryCmd(),
		a.newRatesCmd(),
		a.newExportCmd(),
		a.newWatchCmd(),
	)

	return cmd
}

func (a *App) setup(cmd *cobra.Command, debug bool) error {
	if a.client != nil {
		return nil
	}

	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	a.cfg = cfg
	a.logger = SetupLogger(cmd.ErrOrStderr(), level)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := a.newFactory(a.logger).CreateBackend(cmd.Context(), bcfg)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	a.client, a.cleanup = res.Client, res.Cleanup
	return nil
}

// Close releases the client stack.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup, a.client = nil, nil
	return err
}

func (a *App) requireLogin() error {
	if !a.client.Session.IsAuthenticated() {
		return errors.New("not signed in, run 'moneyguard login' first")
	}
	return nil
}
