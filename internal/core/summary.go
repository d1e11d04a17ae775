package core

import (
	"math"
	"sort"
)

// CategorySummary is one category total returned by the summary endpoint.
type CategorySummary struct {
	Name  string          `json:"name"`
	Type  TransactionType `json:"type"`
	Total float64         `json:"total"`
	Color string          `json:"color,omitempty"`
}

// Summary is the server-computed overview of a month.
type Summary struct {
	CategoriesSummary []CategorySummary `json:"categoriesSummary"`
	IncomeSummary     float64           `json:"incomeSummary"`
	ExpenseSummary    float64           `json:"expenseSummary"`
	PeriodTotal       float64           `json:"periodTotal"`
	Year              int               `json:"year"`
	Month             int               `json:"month"`
}

// CategoryAmount is an expense category ready for the statistics chart.
type CategoryAmount struct {
	Name  string
	Sum   float64
	Color string
}

// Statistics is the month overview shown on the statistics screen.
type Statistics struct {
	Year              int
	Month             int
	TotalExpenses     float64
	TotalIncome       float64
	ExpenseCategories []CategoryAmount
}

// HasExpenseData reports whether there is anything to chart.
func (s Statistics) HasExpenseData() bool {
	return s.TotalExpenses > 0 || len(s.ExpenseCategories) > 0
}

var chartPalette = []string{
	"#FED057", "#FFD8D0", "#FD9498", "#C5BAFF", "#6E78E8", "#4A56E2",
	"#81E1FF", "#24CCA7", "#00AD84", "#9B59B6", "#3498DB", "#E67E22",
}

var categoryColors = map[string]string{
	"Main expenses":      "#FED057",
	"Products":           "#FFD8D0",
	"Car":                "#FD9498",
	"Self care":          "#C5BAFF",
	"Child care":         "#6E78E8",
	"Household products": "#4A56E2",
	"Education":          "#81E1FF",
	"Leisure":            "#24CCA7",
	"Other expenses":     "#00AD84",
	"Income":             "#00AD84",
}

// BuildStatistics shapes a server summary for display. Expense categories are
// sorted by sum, largest first. Colors come from the server, then the known
// category table, then the palette in order of first use.
func BuildStatistics(s Summary) Statistics {
	out := Statistics{
		Year:          s.Year,
		Month:         s.Month,
		TotalExpenses: math.Abs(s.ExpenseSummary),
	}

	colorIndex := 0
	for _, c := range s.CategoriesSummary {
		switch c.Type {
		case Income:
			out.TotalIncome += math.Abs(c.Total)
		case Expense:
			color := c.Color
			if color == "" {
				color = categoryColors[c.Name]
			}
			if color == "" {
				color = chartPalette[colorIndex%len(chartPalette)]
				colorIndex++
			}
			out.ExpenseCategories = append(out.ExpenseCategories, CategoryAmount{
				Name:  c.Name,
				Sum:   math.Abs(c.Total),
				Color: color,
			})
		}
	}

	sort.SliceStable(out.ExpenseCategories, func(i, j int) bool {
		return out.ExpenseCategories[i].Sum > out.ExpenseCategories[j].Sum
	})
	return out
}
