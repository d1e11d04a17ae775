package services

import (
	"context"
	"encoding/json"
	"fmt"

	"moneyguard/internal/apierr"
	"moneyguard/internal/httpclient"
	"moneyguard/internal/query"
)

func doJSON(ctx context.Context, client query.Doer, req httpclient.Request, out any) error {
	raw, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Network(fmt.Errorf("decode %s response: %w", req.Path, err))
	}
	return nil
}

// runAs runs a query and asserts the type of its result.
func runAs[T any](ctx context.Context, q *query.QueryExecutor, name string, params any) (T, error) {
	var zero T
	v, err := q.Run(ctx, name, params)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("%s: unexpected result %T", name, v)
	}
	return out, nil
}
