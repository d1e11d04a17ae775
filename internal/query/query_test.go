package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyguard/internal/apierr"
	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/httpclient"
)

type fakeDoer struct {
	mu     sync.Mutex
	calls  []httpclient.Request
	handle func(n int, req httpclient.Request) ([]byte, error)
}

func (f *fakeDoer) Do(_ context.Context, req httpclient.Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.handle(n, req)
}

func (f *fakeDoer) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newExecutors(d Doer) (*QueryExecutor, *MutationExecutor) {
	q := NewQueryExecutor(cache.NewStore(cache.Options{}), d, nil)
	return q, NewMutationExecutor(q, d, nil)
}

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, cache.QueryKey("getBalance()"), DeriveKey(GetBalance, nil))
	assert.Equal(t, cache.QueryKey("getBalance()"), DeriveKey(GetBalance, struct{}{}))

	a := DeriveKey(GetSummary, SummaryParams{Month: 3, Year: 2024})
	b := DeriveKey(GetSummary, SummaryParams{Month: 3, Year: 2024})
	c := DeriveKey(GetSummary, SummaryParams{Month: 4, Year: 2024})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, cache.QueryKey(`getSummary({"month":3,"year":2024})`), a)

	// map keys are sorted
	assert.Equal(t,
		DeriveKey("q", map[string]int{"b": 1, "a": 2}),
		DeriveKey("q", map[string]int{"a": 2, "b": 1}))
}

func TestRunServesFreshCache(t *testing.T) {
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) {
		return []byte(`{"username":"ann","balance":1523.4}`), nil
	}}
	q, _ := newExecutors(d)

	for i := 0; i < 3; i++ {
		v, err := q.Run(context.Background(), GetBalance, nil)
		require.NoError(t, err)
		assert.Equal(t, 1523.4, v.(core.User).Balance)
	}
	assert.Equal(t, 1, d.count(http.MethodGet, "users/current"))

	e, ok := q.Store().Read(DeriveKey(GetBalance, nil))
	require.True(t, ok)
	assert.Equal(t, cache.StatusSuccess, e.Status)
	assert.Equal(t, []cache.Tag{cache.TypeTag(cache.TagBalance)}, e.Tags)
}

func TestRunCoalescesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) {
		started <- struct{}{}
		<-release
		return []byte(`[{"id":1,"name":"Car"}]`), nil
	}}
	q, _ := newExecutors(d)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = q.Run(context.Background(), GetCategories, nil)
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, d.count(http.MethodGet, "transaction-categories"))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	e, _ := q.Store().Read(DeriveKey(GetCategories, nil))
	assert.ElementsMatch(t, []cache.Tag{
		cache.IDTag(cache.TagCategory, "1"),
		cache.ListTag(cache.TagCategory),
	}, e.Tags)
}

func TestDeletedTransactionDisappearsOnNextRun(t *testing.T) {
	var mu sync.Mutex
	list := []core.Transaction{{ID: "1", Amount: 10}, {ID: "42", Amount: -5}}
	d := &fakeDoer{handle: func(_ int, req httpclient.Request) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		switch req.Method {
		case http.MethodDelete:
			list = list[:1]
			return nil, nil
		default:
			return json.Marshal(list)
		}
	}}
	q, m := newExecutors(d)
	ctx := context.Background()

	v, err := q.Run(ctx, GetTransactions, nil)
	require.NoError(t, err)
	require.Len(t, v.([]core.Transaction), 2)

	_, err = m.Run(ctx, DeleteTransaction, core.ID("42"))
	require.NoError(t, err)

	e, _ := q.Store().Read(DeriveKey(GetTransactions, nil))
	assert.True(t, e.Stale, "invalidation must happen before Run returns")

	v, err = q.Run(ctx, GetTransactions, nil)
	require.NoError(t, err)
	txs := v.([]core.Transaction)
	require.Len(t, txs, 1)
	assert.Equal(t, core.ID("1"), txs[0].ID)
	assert.Equal(t, 2, d.count(http.MethodGet, "transactions"))
}

func TestMutationInvalidatesDeclaredTags(t *testing.T) {
	d := &fakeDoer{handle: func(_ int, req httpclient.Request) ([]byte, error) {
		switch req.Path {
		case "users/current":
			return []byte(`{"balance":1}`), nil
		case "transaction-categories":
			return []byte(`[]`), nil
		}
		return []byte(`{"id":7}`), nil
	}}
	q, m := newExecutors(d)
	ctx := context.Background()

	_, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)
	_, err = q.Run(ctx, GetCategories, nil)
	require.NoError(t, err)

	_, err = m.Run(ctx, AddTransaction, core.Transaction{Type: core.Income, Amount: 5})
	require.NoError(t, err)

	balance, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	categories, _ := q.Store().Read(DeriveKey(GetCategories, nil))
	assert.True(t, balance.Stale)
	assert.False(t, categories.Stale)
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	d := &fakeDoer{handle: func(_ int, req httpclient.Request) ([]byte, error) {
		if req.Method == http.MethodPatch {
			return nil, apierr.FromResponse(http.StatusBadRequest, []byte(`{"message":"bad amount"}`))
		}
		return []byte(`{"balance":1}`), nil
	}}
	q, m := newExecutors(d)
	ctx := context.Background()

	_, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)

	_, err = m.Run(ctx, UpdateTransaction, core.Transaction{ID: "3", Type: core.Expense, Amount: -1})
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
	assert.Equal(t, "bad amount", e.Message)

	balance, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	assert.True(t, balance.Fresh())
}

func TestMutationValidationNeverReachesNetwork(t *testing.T) {
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) { return nil, nil }}
	_, m := newExecutors(d)

	_, err := m.Run(context.Background(), DeleteTransaction, core.ID(""))
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindValidation, e.Kind)
	assert.ErrorIs(t, err, core.ErrMissingID)
	assert.Empty(t, d.calls)
}

func TestUpdateSendsIDInPathOnly(t *testing.T) {
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) { return []byte(`{}`), nil }}
	_, m := newExecutors(d)

	_, err := m.Run(context.Background(), UpdateTransaction, core.Transaction{ID: "42", Type: core.Income, Amount: 3})
	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "transactions/42", d.calls[0].Path)

	raw := mustJSON(t, d.calls[0].Body)
	assert.NotContains(t, string(raw), `"id"`)
}

func TestInvalidatedInFlightRefetchesOnce(t *testing.T) {
	var q *QueryExecutor
	var balance float64
	d := &fakeDoer{handle: func(n int, req httpclient.Request) ([]byte, error) {
		balance = float64(n)
		if n >= 2 {
			// invalidate while this request is in flight
			q.Store().Invalidate(cache.TypeTag(cache.TagBalance))
		}
		return json.Marshal(core.User{Balance: balance})
	}}
	q, _ = newExecutors(d)
	ctx := context.Background()

	_, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)
	q.Store().Invalidate(cache.TypeTag(cache.TagBalance))

	v, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)

	// one original fetch, the refetch, and exactly one follow-up
	assert.Equal(t, 3, d.count(http.MethodGet, "users/current"))
	assert.Equal(t, 3.0, v.(core.User).Balance)
	e, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	assert.True(t, e.Stale, "follow-up result was invalidated too and stays stale")
}

func TestFirstFetchInvalidatedInFlight(t *testing.T) {
	var q *QueryExecutor
	d := &fakeDoer{handle: func(n int, req httpclient.Request) ([]byte, error) {
		if n == 1 {
			q.Store().Invalidate(cache.ListTag(cache.TagTransaction))
		}
		return []byte(`[]`), nil
	}}
	q, _ = newExecutors(d)

	_, err := q.Run(context.Background(), GetTransactions, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.count(http.MethodGet, "transactions"))

	e, _ := q.Store().Read(DeriveKey(GetTransactions, nil))
	assert.True(t, e.Fresh())
}

func TestInvalidatedByLoadingListenerRefetches(t *testing.T) {
	d := &fakeDoer{handle: func(n int, req httpclient.Request) ([]byte, error) {
		return json.Marshal(core.User{Balance: float64(n)})
	}}
	q, _ := newExecutors(d)

	invalidated := false
	_, unsubscribe := q.Subscribe(GetBalance, nil, func(e cache.Entry) {
		if e.Status == cache.StatusLoading && !invalidated {
			invalidated = true
			q.Store().Invalidate(cache.TypeTag(cache.TagBalance))
		}
	})
	defer unsubscribe()

	v, err := q.Run(context.Background(), GetBalance, nil)
	require.NoError(t, err)

	assert.True(t, invalidated)
	assert.Equal(t, 2, d.count(http.MethodGet, "users/current"))
	assert.Equal(t, 2.0, v.(core.User).Balance)
	e, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	assert.True(t, e.Fresh())
}

func TestErrorKeepsPreviousData(t *testing.T) {
	d := &fakeDoer{handle: func(n int, req httpclient.Request) ([]byte, error) {
		if n == 1 {
			return []byte(`{"balance":10}`), nil
		}
		return nil, apierr.Network(errors.New("connection refused"))
	}}
	q, _ := newExecutors(d)
	ctx := context.Background()

	_, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)
	q.Store().Invalidate(cache.TypeTag(cache.TagBalance))

	_, err = q.Run(ctx, GetBalance, nil)
	require.Error(t, err)

	e, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	assert.Equal(t, cache.StatusError, e.Status)
	require.NotNil(t, e.Err)
	assert.Equal(t, 0, e.Err.StatusCode)
	assert.Equal(t, 10.0, e.Data.(core.User).Balance)
	_, ok := e.Result()
	assert.False(t, ok)
}

func TestCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) {
		<-release
		return []byte(`{"balance":5}`), nil
	}}
	q, _ := newExecutors(d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Run(ctx, GetBalance, nil)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	v, err := q.Run(context.Background(), GetBalance, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v.(core.User).Balance)
	assert.Equal(t, 1, d.count(http.MethodGet, "users/current"))
}

func TestSubscribedResultsRefetchAfterMutation(t *testing.T) {
	var mu sync.Mutex
	total := 100.0
	d := &fakeDoer{handle: func(_ int, req httpclient.Request) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if req.Method == http.MethodPost {
			total += 50
			return []byte(`{"id":9}`), nil
		}
		return json.Marshal(core.User{Balance: total})
	}}
	q, m := newExecutors(d)
	ctx := context.Background()

	var mu2 sync.Mutex
	var seen []cache.Entry
	_, unsubscribe := q.Subscribe(GetBalance, nil, func(e cache.Entry) {
		mu2.Lock()
		seen = append(seen, e)
		mu2.Unlock()
	})
	defer unsubscribe()

	_, err := q.Run(ctx, GetBalance, nil)
	require.NoError(t, err)
	_, err = m.Run(ctx, AddTransaction, core.Transaction{Type: core.Income, Amount: 50})
	require.NoError(t, err)
	q.Wait()

	e, _ := q.Store().Read(DeriveKey(GetBalance, nil))
	require.True(t, e.Fresh())
	assert.Equal(t, 150.0, e.Data.(core.User).Balance)
	assert.Equal(t, 2, d.count(http.MethodGet, "users/current"))

	mu2.Lock()
	defer mu2.Unlock()
	assert.NotEmpty(t, seen)
}

func TestUnknownQuery(t *testing.T) {
	q, m := newExecutors(&fakeDoer{})
	_, err := q.Run(context.Background(), "getWallet", nil)
	assert.ErrorIs(t, err, ErrUnknownQuery)
	_, err = m.Run(context.Background(), "dropWallet", nil)
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestSummaryRequest(t *testing.T) {
	d := &fakeDoer{handle: func(int, httpclient.Request) ([]byte, error) {
		return []byte(`{"periodTotal":12}`), nil
	}}
	q, _ := newExecutors(d)

	v, err := q.Run(context.Background(), GetSummary, SummaryParams{Month: 2, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 12.0, v.(core.Summary).PeriodTotal)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "2", d.calls[0].Query.Get("month"))
	assert.Equal(t, "2025", d.calls[0].Query.Get("year"))
}
