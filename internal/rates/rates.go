// Package rates caches the external currency rate feed for one hour in
// durable storage.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/httpclient"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
	"moneyguard/internal/query"
	"moneyguard/internal/storage"
)

const (
	RatesKey     = "monoCurrencyRates"
	LastFetchKey = "monoCurrencyLastFetch"

	// TTL is the freshness window of the persisted record.
	TTL = time.Hour
)

type Cache struct {
	store   storage.Store
	queries *query.QueryExecutor
	client  query.Doer
	url     string
	now     func() time.Time
	logger  *log.Logger
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates the rate cache and registers the getCurrencyRates query on
// queries.
func New(store storage.Store, queries *query.QueryExecutor, client query.Doer, url string, logger *log.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Cache{
		store:   store,
		queries: queries,
		client:  client,
		url:     url,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentRates),
	}
	for _, opt := range opts {
		opt(c)
	}

	queries.Register(query.GetCurrencyRates, query.QueryEndpoint{
		Fetch: func(ctx context.Context, _ any) (any, error) { return c.load(ctx) },
		Tags: func(any, any) []cache.Tag {
			return []cache.Tag{cache.TypeTag(cache.TagCurrency)}
		},
	})
	return c
}

// GetRates returns the persisted rates while they are younger than TTL and
// fetches the feed otherwise. A failed fetch is returned as is; an expired
// record is not used as a fallback.
func (c *Cache) GetRates(ctx context.Context) ([]core.CurrencyRate, error) {
	v, err := c.queries.Fetch(ctx, query.GetCurrencyRates, nil)
	if err != nil {
		return nil, err
	}
	rates, _ := v.([]core.CurrencyRate)
	return rates, nil
}

func (c *Cache) load(ctx context.Context) ([]core.CurrencyRate, error) {
	if rates, fetchedAt, ok := c.readRecord(ctx); ok {
		if age := c.now().Sub(fetchedAt); age >= 0 && age < TTL {
			metrics.RateCacheTotal.WithLabelValues("fresh").Inc()
			c.logger.DebugContext(ctx, "Serving persisted currency rates", "age", age.String())
			return rates, nil
		}
	}

	raw, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: c.url})
	if err != nil {
		metrics.RateCacheTotal.WithLabelValues("failed").Inc()
		c.logger.WarnContext(ctx, "Currency rate fetch failed", log.FieldError, err.Error())
		return nil, err
	}

	var rates []core.CurrencyRate
	if err := json.Unmarshal(raw, &rates); err != nil {
		metrics.RateCacheTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("decode currency rates: %w", err)
	}
	metrics.RateCacheTotal.WithLabelValues("fetched").Inc()

	if err := c.writeRecord(ctx, raw, c.now()); err != nil {
		c.logger.WarnContext(ctx, "Failed to persist currency rates", log.FieldError, err.Error())
	}
	return rates, nil
}

func (c *Cache) readRecord(ctx context.Context) ([]core.CurrencyRate, time.Time, bool) {
	rawTS, okTS, err := c.store.Get(ctx, LastFetchKey)
	if err != nil || !okTS {
		return nil, time.Time{}, false
	}
	rawRates, okRates, err := c.store.Get(ctx, RatesKey)
	if err != nil || !okRates {
		return nil, time.Time{}, false
	}

	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return nil, time.Time{}, false
	}
	var rates []core.CurrencyRate
	if err := json.Unmarshal([]byte(rawRates), &rates); err != nil {
		c.logger.WarnContext(ctx, "Ignoring unreadable currency rate record", log.FieldError, err.Error())
		return nil, time.Time{}, false
	}
	return rates, time.UnixMilli(ms), true
}

func (c *Cache) writeRecord(ctx context.Context, raw []byte, fetchedAt time.Time) error {
	if err := c.store.Set(ctx, RatesKey, string(raw)); err != nil {
		return err
	}
	return c.store.Set(ctx, LastFetchKey, strconv.FormatInt(fetchedAt.UnixMilli(), 10))
}
