package sheets

import (
	"context"

	"moneyguard/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter writes a full snapshot of the transaction list and
	// returns a reference to where it was written.
	TransactionExporter interface {
		Export(ctx context.Context, rows []Row) (ref string, err error)
	}
)

// Row is one exported transaction in display form.
type Row struct {
	Date     string
	Type     core.TransactionType
	Category string
	Comment  string
	Amount   float64
}

// Header is the first row of an export.
var Header = []string{"Date", "Type", "Category", "Comment", "Sum"}

// Rows converts transactions to export rows, resolving category names.
func Rows(txs []core.Transaction, categories []core.Category) []Row {
	names := core.CategoryNames(categories)
	out := make([]Row, 0, len(txs))
	for _, t := range txs {
		out = append(out, Row{
			Date:     core.FormatDate(t.TransactionDate),
			Type:     t.Type,
			Category: t.CategoryName(names),
			Comment:  t.Comment,
			Amount:   t.Amount,
		})
	}
	return out
}
