// Package query runs named queries and mutations against the backend and
// keeps their results in the cache store.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moneyguard/internal/apierr"
	"moneyguard/internal/cache"
	"moneyguard/internal/httpclient"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
)

// ErrUnknownQuery is returned for names without a registered endpoint.
var ErrUnknownQuery = errors.New("unknown query")

// Doer performs backend requests. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) ([]byte, error)
}

// call is a fetch in progress. data and err are set before done is closed.
type call struct {
	done chan struct{}
	data any
	err  error
}

type QueryExecutor struct {
	store   *cache.Store
	client  Doer
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	endpoints map[string]QueryEndpoint
	inflight  map[cache.QueryKey]*call

	background sync.WaitGroup
}

type ExecutorOption func(*QueryExecutor)

// WithFetchTimeout bounds a shared fetch, which runs detached from callers.
func WithFetchTimeout(d time.Duration) ExecutorOption {
	return func(e *QueryExecutor) { e.timeout = d }
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *QueryExecutor) { e.now = now }
}

func NewQueryExecutor(store *cache.Store, client Doer, logger *log.Logger, opts ...ExecutorOption) *QueryExecutor {
	if logger == nil {
		logger = log.Discard()
	}
	e := &QueryExecutor{
		store:     store,
		client:    client,
		logger:    logger.WithComponent(log.ComponentQuery),
		now:       time.Now,
		endpoints: Queries(),
		inflight:  make(map[cache.QueryKey]*call),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces the endpoint of name.
func (e *QueryExecutor) Register(name string, ep QueryEndpoint) {
	e.mu.Lock()
	e.endpoints[name] = ep
	e.mu.Unlock()
}

// Store returns the backing cache store.
func (e *QueryExecutor) Store() *cache.Store { return e.store }

// Run returns the result of name(params). Fresh cached results are returned
// without network I/O and concurrent identical calls share one request.
func (e *QueryExecutor) Run(ctx context.Context, name string, params any) (any, error) {
	return e.run(ctx, name, params, false)
}

// Fetch is Run without the cache check. Concurrent calls still share one
// request.
func (e *QueryExecutor) Fetch(ctx context.Context, name string, params any) (any, error) {
	return e.run(ctx, name, params, true)
}

// Refetch fetches a known key again from its stored name and params.
func (e *QueryExecutor) Refetch(ctx context.Context, key cache.QueryKey) (any, error) {
	entry, ok := e.store.Read(key)
	if !ok || entry.Name == "" {
		return nil, fmt.Errorf("refetch %s: not cached", key)
	}
	return e.run(ctx, entry.Name, entry.Params, true)
}

// Subscribe registers fn for changes of name(params) and returns the key and
// the function that removes the subscription.
func (e *QueryExecutor) Subscribe(name string, params any, fn cache.Listener) (cache.QueryKey, func()) {
	key := DeriveKey(name, params)
	return key, e.store.Subscribe(key, fn)
}

// RefreshStale refetches the keys among keys that are not fresh, different
// keys concurrently. It returns the first error.
func (e *QueryExecutor) RefreshStale(ctx context.Context, keys []cache.QueryKey) error {
	return e.refresh(ctx, keys, false)
}

// RefreshAll refetches every cached key among keys regardless of freshness.
func (e *QueryExecutor) RefreshAll(ctx context.Context, keys []cache.QueryKey) error {
	return e.refresh(ctx, keys, true)
}

func (e *QueryExecutor) refresh(ctx context.Context, keys []cache.QueryKey, all bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		entry, ok := e.store.Read(key)
		if !ok || entry.Status == cache.StatusLoading || entry.Name == "" {
			continue
		}
		if entry.Fresh() && !all {
			continue
		}
		g.Go(func() error {
			if _, err := e.Refetch(gctx, key); err != nil {
				return fmt.Errorf("refetch %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RefreshSubscribedAsync refetches the subscribed keys among keys in the
// background.
func (e *QueryExecutor) RefreshSubscribedAsync(keys []cache.QueryKey) {
	subscribed := make(map[cache.QueryKey]bool)
	for _, k := range e.store.Subscribed() {
		subscribed[k] = true
	}
	var targets []cache.QueryKey
	for _, k := range keys {
		if subscribed[k] {
			targets = append(targets, k)
		}
	}
	if len(targets) == 0 {
		return
	}

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		if err := e.RefreshStale(context.Background(), targets); err != nil {
			e.logger.Warn("Background refetch failed", log.FieldError, err.Error())
		}
	}()
}

// Wait blocks until background refetches have finished.
func (e *QueryExecutor) Wait() {
	e.background.Wait()
}

func (e *QueryExecutor) run(ctx context.Context, name string, params any, force bool) (any, error) {
	e.mu.Lock()
	ep, ok := e.endpoints[name]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	key := DeriveKey(name, params)

	// checked under e.mu so a fetch that just finished is seen as cached
	if !force {
		if entry, ok := e.store.Read(key); ok && entry.Fresh() {
			e.mu.Unlock()
			metrics.CacheLookupsTotal.WithLabelValues(name, "hit").Inc()
			e.logger.DebugContext(ctx, "Cache hit", log.FieldCacheKey, string(key))
			return entry.Data, nil
		}
	}

	if c, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues(name, "coalesced").Inc()
		return e.wait(ctx, c)
	}

	c := &call{done: make(chan struct{})}
	e.inflight[key] = c
	e.mu.Unlock()
	metrics.CacheLookupsTotal.WithLabelValues(name, "miss").Inc()

	fetchCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(fetchCtx, e.timeout)
	}
	go func() {
		defer cancel()
		e.execute(fetchCtx, key, name, params, ep, c)
	}()
	return e.wait(ctx, c)
}

func (e *QueryExecutor) wait(ctx context.Context, c *call) (any, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute owns the in-flight slot of key until it returns. A result that was
// invalidated while in flight triggers exactly one follow-up fetch.
func (e *QueryExecutor) execute(ctx context.Context, key cache.QueryKey, name string, params any, ep QueryEndpoint, c *call) {
	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
		close(c.done)
	}()

	data, stale, err := e.fetchOnce(ctx, key, name, params, ep)
	if stale {
		metrics.CacheLookupsTotal.WithLabelValues(name, "stale").Inc()
		e.logger.DebugContext(ctx, "Result invalidated in flight, fetching again", log.FieldCacheKey, string(key))
		data, _, err = e.fetchOnce(ctx, key, name, params, ep)
	}
	c.data, c.err = data, err
}

func (e *QueryExecutor) fetchOnce(ctx context.Context, key cache.QueryKey, name string, params any, ep QueryEndpoint) (any, bool, error) {
	// the generation is taken with the Loading write; an invalidation
	// delivered to a Loading listener must still mark this fetch stale
	_, startGen, _ := e.store.Update(key, func(cur cache.Entry, _ bool, _ uint64) (cache.Entry, bool) {
		cur.Name, cur.Params = name, params
		cur.Status = cache.StatusLoading
		cur.Err = nil
		// provisional tags so a first fetch can be invalidated in flight
		if len(cur.Tags) == 0 && ep.Tags != nil {
			cur.Tags = ep.Tags(nil, params)
		}
		return cur, true
	})

	start := e.now()
	data, err := e.call(ctx, ep, params)
	if err != nil {
		e.logger.WarnContext(ctx, "Query failed", log.NewFields().
			WithCacheKey(string(key)).
			WithOperation(log.OpFetch).
			WithError(err).ToSlice()...)
	} else {
		e.logger.DebugContext(ctx, "Query fetched",
			log.FieldCacheKey, string(key),
			log.FieldDuration, e.now().Sub(start).Milliseconds())
	}

	var tags []cache.Tag
	if err == nil && ep.Tags != nil {
		tags = ep.Tags(data, params)
	}

	stale := false
	e.store.Update(key, func(cur cache.Entry, exists bool, gen uint64) (cache.Entry, bool) {
		// removed by Clear while in flight
		if !exists {
			return cur, false
		}
		stale = gen != startGen
		cur.Name, cur.Params = name, params
		cur.Stale = stale
		if err != nil {
			cur.Status = cache.StatusError
			cur.Err = apierr.Normalize(err)
			return cur, true
		}
		cur.Status = cache.StatusSuccess
		cur.Data = data
		cur.Err = nil
		cur.Tags = tags
		cur.LastFetchedAt = e.now()
		return cur, true
	})

	if err != nil {
		return nil, stale, apierr.Normalize(err)
	}
	return data, stale, nil
}

func (e *QueryExecutor) call(ctx context.Context, ep QueryEndpoint, params any) (any, error) {
	if ep.Fetch != nil {
		return ep.Fetch(ctx, params)
	}
	req, err := ep.Request(params)
	if err != nil {
		return nil, apierr.Validation(err)
	}
	raw, err := e.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if ep.Decode == nil {
		return raw, nil
	}
	data, err := ep.Decode(raw)
	if err != nil {
		return nil, apierr.Network(err)
	}
	return data, nil
}
