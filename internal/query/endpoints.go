package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/httpclient"
)

// Query and mutation names.
const (
	GetBalance        = "getBalance"
	GetCategories     = "getCategories"
	GetTransactions   = "getTransactions"
	GetSummary        = "getSummary"
	GetCurrencyRates  = "getCurrencyRates"
	AddTransaction    = "addTransaction"
	UpdateTransaction = "updateTransaction"
	DeleteTransaction = "deleteTransaction"
)

// SummaryParams selects the month of getSummary.
type SummaryParams struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// QueryEndpoint describes how a query is fetched and tagged. Fetch, when set,
// replaces Request and Decode.
type QueryEndpoint struct {
	Request func(params any) (httpclient.Request, error)
	Decode  func(raw []byte) (any, error)
	Tags    func(result any, params any) []cache.Tag
	Fetch   func(ctx context.Context, params any) (any, error)
}

// MutationEndpoint describes a write and the tags it invalidates on success.
type MutationEndpoint struct {
	Request     func(params any) (httpclient.Request, error)
	Decode      func(raw []byte) (any, error)
	Invalidates func(params any) []cache.Tag
}

func decodeJSON[T any](raw []byte) (any, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

func static(method, path string) func(any) (httpclient.Request, error) {
	return func(any) (httpclient.Request, error) {
		return httpclient.Request{Method: method, Path: path, Auth: true}, nil
	}
}

func fixedTags(tags ...cache.Tag) func(any, any) []cache.Tag {
	return func(any, any) []cache.Tag { return tags }
}

// Queries returns the backend queries. getCurrencyRates is registered by the
// rate cache.
func Queries() map[string]QueryEndpoint {
	return map[string]QueryEndpoint{
		GetBalance: {
			Request: static(http.MethodGet, "users/current"),
			Decode:  decodeJSON[core.User],
			Tags:    fixedTags(cache.TypeTag(cache.TagBalance)),
		},
		GetCategories: {
			Request: static(http.MethodGet, "transaction-categories"),
			Decode:  decodeJSON[[]core.Category],
			Tags: func(result any, _ any) []cache.Tag {
				categories, _ := result.([]core.Category)
				tags := make([]cache.Tag, 0, len(categories)+1)
				for _, c := range categories {
					tags = append(tags, cache.IDTag(cache.TagCategory, c.ID.String()))
				}
				return append(tags, cache.ListTag(cache.TagCategory))
			},
		},
		GetTransactions: {
			Request: static(http.MethodGet, "transactions"),
			Decode:  decodeJSON[[]core.Transaction],
			Tags: func(result any, _ any) []cache.Tag {
				transactions, _ := result.([]core.Transaction)
				tags := make([]cache.Tag, 0, len(transactions)+1)
				for _, t := range transactions {
					tags = append(tags, cache.IDTag(cache.TagTransaction, t.ID.String()))
				}
				return append(tags, cache.ListTag(cache.TagTransaction))
			},
		},
		GetSummary: {
			Request: func(params any) (httpclient.Request, error) {
				p, ok := params.(SummaryParams)
				if !ok {
					return httpclient.Request{}, fmt.Errorf("%s: unexpected params %T", GetSummary, params)
				}
				return httpclient.Request{
					Method: http.MethodGet,
					Path:   "transactions-summary",
					Query: url.Values{
						"month": {strconv.Itoa(p.Month)},
						"year":  {strconv.Itoa(p.Year)},
					},
					Auth: true,
				}, nil
			},
			Decode: decodeJSON[core.Summary],
			Tags:   fixedTags(cache.TypeTag(cache.TagSummary)),
		},
	}
}

func transactionChanged(id core.ID) []cache.Tag {
	tags := []cache.Tag{
		cache.ListTag(cache.TagTransaction),
		cache.TypeTag(cache.TagBalance),
		cache.TypeTag(cache.TagSummary),
	}
	if !id.IsZero() {
		tags = append([]cache.Tag{cache.IDTag(cache.TagTransaction, id.String())}, tags...)
	}
	return tags
}

func transactionPath(id core.ID) string {
	return "transactions/" + url.PathEscape(id.String())
}

// Mutations returns the transaction writes.
func Mutations() map[string]MutationEndpoint {
	return map[string]MutationEndpoint{
		AddTransaction: {
			Request: func(params any) (httpclient.Request, error) {
				t, ok := params.(core.Transaction)
				if !ok {
					return httpclient.Request{}, fmt.Errorf("%s: unexpected params %T", AddTransaction, params)
				}
				return httpclient.Request{Method: http.MethodPost, Path: "transactions", Body: t, Auth: true}, nil
			},
			Decode:      decodeJSON[core.Transaction],
			Invalidates: func(any) []cache.Tag { return transactionChanged("") },
		},
		UpdateTransaction: {
			Request: func(params any) (httpclient.Request, error) {
				t, ok := params.(core.Transaction)
				if !ok {
					return httpclient.Request{}, fmt.Errorf("%s: unexpected params %T", UpdateTransaction, params)
				}
				if t.ID.IsZero() {
					return httpclient.Request{}, core.ErrMissingID
				}
				path := transactionPath(t.ID)
				t.ID = ""
				return httpclient.Request{Method: http.MethodPatch, Path: path, Body: t, Auth: true}, nil
			},
			Decode: decodeJSON[core.Transaction],
			Invalidates: func(params any) []cache.Tag {
				t, _ := params.(core.Transaction)
				return transactionChanged(t.ID)
			},
		},
		DeleteTransaction: {
			Request: func(params any) (httpclient.Request, error) {
				id, ok := params.(core.ID)
				if !ok {
					return httpclient.Request{}, fmt.Errorf("%s: unexpected params %T", DeleteTransaction, params)
				}
				if id.IsZero() {
					return httpclient.Request{}, core.ErrMissingID
				}
				return httpclient.Request{Method: http.MethodDelete, Path: transactionPath(id), Auth: true}, nil
			},
			Decode: func([]byte) (any, error) { return nil, nil },
			Invalidates: func(params any) []cache.Tag {
				id, _ := params.(core.ID)
				return transactionChanged(id)
			},
		},
	}
}
