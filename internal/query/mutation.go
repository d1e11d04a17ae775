package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moneyguard/internal/apierr"
	"moneyguard/internal/cache"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
)

// Publisher forwards the tags of a successful mutation to other clients.
type Publisher interface {
	PublishInvalidation(ctx context.Context, tags []cache.Tag) error
}

type MutationExecutor struct {
	queries   *QueryExecutor
	client    Doer
	publisher Publisher
	logger    *log.Logger
	slog      *log.StructuredLogger
	timeout   time.Duration

	mu        sync.RWMutex
	endpoints map[string]MutationEndpoint
}

type MutationOption func(*MutationExecutor)

func WithPublisher(p Publisher) MutationOption {
	return func(m *MutationExecutor) { m.publisher = p }
}

// WithMutationTimeout bounds a mutation request, which ignores caller
// cancellation.
func WithMutationTimeout(d time.Duration) MutationOption {
	return func(m *MutationExecutor) { m.timeout = d }
}

func NewMutationExecutor(queries *QueryExecutor, client Doer, logger *log.Logger, opts ...MutationOption) *MutationExecutor {
	if logger == nil {
		logger = log.Discard()
	}
	m := &MutationExecutor{
		queries:   queries,
		client:    client,
		logger:    logger.WithComponent(log.ComponentMutation),
		endpoints: Mutations(),
	}
	m.slog = log.NewStructuredLogger(m.logger)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MutationExecutor) Register(name string, ep MutationEndpoint) {
	m.mu.Lock()
	m.endpoints[name] = ep
	m.mu.Unlock()
}

// Run performs name(params). On success the declared tags are invalidated
// before Run returns; subscribed results are refetched in the background and
// the tags are published when a publisher is configured. Failures leave the
// cache untouched.
func (m *MutationExecutor) Run(ctx context.Context, name string, params any) (any, error) {
	m.mu.RLock()
	ep, ok := m.endpoints[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}

	req, err := ep.Request(params)
	if err != nil {
		return nil, apierr.Validation(err)
	}

	callCtx := context.WithoutCancel(ctx)
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.timeout)
		defer cancel()
	}

	raw, err := m.client.Do(callCtx, req)
	if err != nil {
		m.logger.WarnContext(ctx, "Mutation failed", log.FieldMutation, name, log.FieldError, err.Error())
		return nil, apierr.Normalize(err)
	}

	var data any
	if ep.Decode != nil {
		if data, err = ep.Decode(raw); err != nil {
			// the write happened; invalidate anyway
			m.logger.WarnContext(ctx, "Mutation response not decodable", log.FieldMutation, name, log.FieldError, err.Error())
		}
	}

	var tags []cache.Tag
	if ep.Invalidates != nil {
		tags = ep.Invalidates(params)
	}
	m.Invalidate(callCtx, "mutation", tags)

	if m.publisher != nil && len(tags) > 0 {
		if err := m.publisher.PublishInvalidation(callCtx, tags); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish invalidation", log.FieldMutation, name, log.FieldError, err.Error())
		}
	}

	m.logger.DebugContext(ctx, "Mutation completed", log.FieldMutation, name, log.FieldTags, cache.TagStrings(tags))
	return data, nil
}

// Invalidate marks the tagged results stale and refetches the subscribed
// ones in the background. source labels the origin for logs and metrics.
func (m *MutationExecutor) Invalidate(ctx context.Context, source string, tags []cache.Tag) []cache.QueryKey {
	if len(tags) == 0 {
		return nil
	}
	affected := m.queries.Store().Invalidate(tags...)
	metrics.InvalidationsTotal.WithLabelValues(source).Inc()
	m.slog.LogInvalidation(ctx, source, cache.TagStrings(tags), len(affected))
	m.queries.RefreshSubscribedAsync(affected)
	return affected
}
