package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/log"
	"moneyguard/internal/middleware/trace"
	"moneyguard/internal/query"
)

const shutdownTimeout = 10 * time.Second

type watchedQuery struct {
	name   string
	params any
}

func (a *App) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep balance, transactions and this month's summary fresh",
		Long: `Subscribes to the balance, the transaction list and the current month's
summary, refreshes them on REFRESH_SCHEDULE, applies invalidations from other
clients when AMQP_URL is set and serves Prometheus metrics on METRICS_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			return a.watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *App) watch(parent context.Context, out io.Writer) error {
	logger := a.logger.WithComponent(log.ComponentApp)
	client := a.client
	now := time.Now()
	watched := []watchedQuery{
		{query.GetBalance, nil},
		{query.GetTransactions, nil},
		{query.GetSummary, query.SummaryParams{Month: int(now.Month()), Year: now.Year()}},
	}

	var mu sync.Mutex
	report := func(e cache.Entry) {
		mu.Lock()
		defer mu.Unlock()
		printEntry(out, e)
	}
	for _, w := range watched {
		_, unsubscribe := client.Queries.Subscribe(w.name, w.params, report)
		defer unsubscribe()
	}

	if err := client.Worker.Start(a.cfg.RefreshSchedule); err != nil {
		return err
	}

	metricsSrv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           trace.NewMiddleware(a.logger).Middleware(metricsMux()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.FieldError, err.Error())
		}
	}()
	logger.Info("Metrics server listening", "addr", a.cfg.MetricsAddr)

	ctx, done := GracefulShutdown(parent, logger, shutdownTimeout, func() {
		client.Worker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", log.FieldError, err.Error())
		}
	})

	if client.Bus != nil {
		go func() {
			err := client.Bus.ConsumeInvalidations(ctx, client.Worker.HandleInvalidation)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", log.FieldError, err.Error())
			}
		}()
	}

	for _, w := range watched {
		if _, err := client.Queries.Run(ctx, w.name, w.params); err != nil {
			logger.Warn("Initial fetch failed", log.FieldQuery, w.name, log.FieldError, err.Error())
		}
	}

	WaitForShutdown(ctx, done)
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// printEntry writes one line per settled entry.
func printEntry(out io.Writer, e cache.Entry) {
	stamp := time.Now().Format(time.TimeOnly)
	switch e.Status {
	case cache.StatusError:
		fmt.Fprintf(out, "%s %s error: %v\n", stamp, e.Key, e.Err)
	case cache.StatusSuccess:
		fmt.Fprintf(out, "%s %s %s\n", stamp, e.Key, describe(e.Data))
	}
}

func describe(data any) string {
	switch v := data.(type) {
	case core.User:
		return "balance " + core.FormatCurrency(v.Balance)
	case []core.Transaction:
		return fmt.Sprintf("%d transactions", len(v))
	case core.Summary:
		return fmt.Sprintf("expenses %s, income %s",
			core.FormatCurrency(v.ExpenseSummary), core.FormatCurrency(v.IncomeSummary))
	default:
		return "updated"
	}
}
