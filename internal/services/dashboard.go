package services

import (
	"context"

	"moneyguard/internal/core"
	"moneyguard/internal/query"
	"moneyguard/internal/rates"
)

// DashboardService shapes balance, statistics and rates for display.
type DashboardService struct {
	queries *query.QueryExecutor
	rates   *rates.Cache
}

func NewDashboardService(queries *query.QueryExecutor, rateCache *rates.Cache) *DashboardService {
	return &DashboardService{queries: queries, rates: rateCache}
}

func (s *DashboardService) Balance(ctx context.Context) (float64, error) {
	user, err := runAs[core.User](ctx, s.queries, query.GetBalance, nil)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// FormattedBalance renders the balance as "1,523.40".
func (s *DashboardService) FormattedBalance(ctx context.Context) (string, error) {
	b, err := s.Balance(ctx)
	if err != nil {
		return "", err
	}
	return core.FormatCurrency(b), nil
}

func (s *DashboardService) Summary(ctx context.Context, month, year int) (core.Summary, error) {
	return runAs[core.Summary](ctx, s.queries, query.GetSummary, query.SummaryParams{Month: month, Year: year})
}

// Statistics returns the month overview for the statistics screen.
func (s *DashboardService) Statistics(ctx context.Context, month, year int) (core.Statistics, error) {
	summary, err := s.Summary(ctx, month, year)
	if err != nil {
		return core.Statistics{}, err
	}
	stats := core.BuildStatistics(summary)
	if stats.Month == 0 {
		stats.Month, stats.Year = month, year
	}
	return stats, nil
}

// CurrencyRates returns the USD and EUR rows. When the feed fails the mock
// table is returned together with the error.
func (s *DashboardService) CurrencyRates(ctx context.Context) ([]rates.DisplayRate, error) {
	list, err := s.rates.GetRates(ctx)
	if err != nil {
		return rates.MockRates(), err
	}
	return rates.DisplayRates(list), nil
}
