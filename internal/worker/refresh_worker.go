package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"moneyguard/internal/amqp"
	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
	"moneyguard/internal/query"
)

const (
	jobRefreshQueries = "refresh_queries"
	jobRefreshRates   = "refresh_rates"

	// upper bound for one scheduled run
	runTimeout = 2 * time.Minute
)

// RatesSource refreshes the currency rates. *rates.Cache implements it.
type RatesSource interface {
	GetRates(ctx context.Context) ([]core.CurrencyRate, error)
}

// RefreshWorker keeps subscribed queries and the currency rates current and
// applies invalidations received from other clients.
type RefreshWorker struct {
	queries   *query.QueryExecutor
	mutations *query.MutationExecutor
	rates     RatesSource
	logger    *log.Logger

	cron *cron.Cron
}

func NewRefreshWorker(queries *query.QueryExecutor, mutations *query.MutationExecutor, rates RatesSource, logger *log.Logger) *RefreshWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshWorker{
		queries:   queries,
		mutations: mutations,
		rates:     rates,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleInvalidation applies the tags of a mutation made by another client.
func (w *RefreshWorker) HandleInvalidation(ctx context.Context, msg *amqp.InvalidationMessage) error {
	w.logger.InfoContext(ctx, "Processing invalidation message",
		log.FieldTags, cache.TagStrings(msg.Tags),
		"origin", msg.Origin,
		"timestamp", msg.Timestamp)

	w.mutations.Invalidate(ctx, "bus", msg.Tags)
	return nil
}

// RefreshOnce refetches every subscribed query and, when a rates source is
// set, the currency rates. It returns the first error of each job joined.
func (w *RefreshWorker) RefreshOnce(ctx context.Context) error {
	started := time.Now()
	keys := w.queries.Store().Subscribed()
	queryErr := w.queries.RefreshAll(ctx, keys)
	metrics.UpdateJobMetrics(jobRefreshQueries, started, queryErr)
	if queryErr != nil {
		w.logger.WarnContext(ctx, "Query refresh completed with error",
			log.FieldError, queryErr.Error(),
			log.FieldCount, len(keys))
	} else {
		w.logger.DebugContext(ctx, "Query refresh completed",
			log.FieldCount, len(keys),
			log.FieldDuration, time.Since(started).Milliseconds())
	}

	if w.rates == nil {
		return queryErr
	}

	started = time.Now()
	_, ratesErr := w.rates.GetRates(ctx)
	metrics.UpdateJobMetrics(jobRefreshRates, started, ratesErr)
	if ratesErr != nil {
		w.logger.WarnContext(ctx, "Rates refresh failed", log.FieldError, ratesErr.Error())
	}

	switch {
	case queryErr != nil && ratesErr != nil:
		return fmt.Errorf("refresh queries: %w; refresh rates: %w", queryErr, ratesErr)
	case queryErr != nil:
		return fmt.Errorf("refresh queries: %w", queryErr)
	case ratesErr != nil:
		return fmt.Errorf("refresh rates: %w", ratesErr)
	}
	return nil
}

// Start runs RefreshOnce on the cron schedule until Stop is called.
func (w *RefreshWorker) Start(schedule string) error {
	if w.cron != nil {
		return fmt.Errorf("refresh worker already started")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_ = w.RefreshOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	w.cron = c
	c.Start()
	w.logger.Info("Refresh worker started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (w *RefreshWorker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.cron = nil
	w.logger.Info("Refresh worker stopped")
}
