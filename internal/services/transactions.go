package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"moneyguard/internal/apierr"
	"moneyguard/internal/core"
	"moneyguard/internal/log"
	"moneyguard/internal/query"
	"moneyguard/internal/sheets"
)

const (
	addFallback    = "Failed to add transaction."
	updateFallback = "Failed to update transaction."
	deleteFallback = "Failed to delete transaction."
)

// TransactionService validates transaction forms and runs the matching
// queries and mutations.
type TransactionService struct {
	queries   *query.QueryExecutor
	mutations *query.MutationExecutor
	exporter  sheets.TransactionExporter
	logger    *log.Logger
}

func NewTransactionService(queries *query.QueryExecutor, mutations *query.MutationExecutor, exporter sheets.TransactionExporter, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		queries:   queries,
		mutations: mutations,
		exporter:  exporter,
		logger:    logger.WithComponent(log.ComponentMutation),
	}
}

// List returns the transactions, newest first.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	txs, err := runAs[[]core.Transaction](ctx, s.queries, query.GetTransactions, nil)
	if err != nil {
		return nil, err
	}
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate > out[j].TransactionDate
	})
	return out, nil
}

func (s *TransactionService) Categories(ctx context.Context) ([]core.Category, error) {
	return runAs[[]core.Category](ctx, s.queries, query.GetCategories, nil)
}

// ExpenseCategories returns the categories an expense may be filed under.
func (s *TransactionService) ExpenseCategories(ctx context.Context) ([]core.Category, error) {
	all, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		if !c.IsIncomeCategory() {
			out = append(out, c)
		}
	}
	return out, nil
}

// Add validates the form and creates the transaction. Income is filed under
// the backend's income category.
func (s *TransactionService) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, apierr.Validation(err)
	}

	var categories []core.Category
	if in.Type == core.Income {
		var err error
		if categories, err = s.Categories(ctx); err != nil {
			s.logger.WarnContext(ctx, "Categories unavailable for income", log.FieldError, err.Error())
			return core.Transaction{}, apierr.Validation(core.ErrNoIncomeCategory)
		}
	}

	tx, err := in.ToTransaction(categories)
	if err != nil {
		return core.Transaction{}, apierr.Validation(err)
	}

	v, err := s.mutations.Run(ctx, query.AddTransaction, tx)
	if err != nil {
		return core.Transaction{}, apierr.WithFallback(err, addFallback)
	}
	if created, ok := v.(core.Transaction); ok {
		return created, nil
	}
	return tx, nil
}

// Update validates the form and patches original.
func (s *TransactionService) Update(ctx context.Context, original core.Transaction, in core.TransactionInput) (core.Transaction, error) {
	tx, err := in.ToUpdate(original)
	if err != nil {
		return core.Transaction{}, apierr.Validation(err)
	}

	v, err := s.mutations.Run(ctx, query.UpdateTransaction, tx)
	if err != nil {
		return core.Transaction{}, apierr.WithFallback(err, updateFallback)
	}
	if updated, ok := v.(core.Transaction); ok && !updated.ID.IsZero() {
		return updated, nil
	}
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, id core.ID) error {
	if id.IsZero() {
		return apierr.Validation(core.ErrMissingID)
	}
	if _, err := s.mutations.Run(ctx, query.DeleteTransaction, id); err != nil {
		return apierr.WithFallback(err, deleteFallback)
	}
	return nil
}

// Find returns the cached-or-fetched transaction with id.
func (s *TransactionService) Find(ctx context.Context, id core.ID) (core.Transaction, error) {
	txs, err := s.List(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, t := range txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s not found", id)
}

// Export writes the transaction list to the configured exporter and returns
// its reference and the number of rows.
func (s *TransactionService) Export(ctx context.Context) (string, int, error) {
	if s.exporter == nil {
		return "", 0, errors.New("no exporter configured")
	}
	txs, err := s.List(ctx)
	if err != nil {
		return "", 0, err
	}
	categories, err := s.Categories(ctx)
	if err != nil {
		return "", 0, err
	}

	rows := sheets.Rows(txs, categories)
	ref, err := s.exporter.Export(ctx, rows)
	if err != nil {
		return "", 0, fmt.Errorf("export transactions: %w", err)
	}
	s.logger.InfoContext(ctx, "Export completed", log.FieldOperation, log.OpExport, log.FieldCount, len(rows))
	return ref, len(rows), nil
}
