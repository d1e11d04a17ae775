package rates

import "moneyguard/internal/core"

const (
	codeUSD = 840
	codeEUR = 978
	codeUAH = 980

	defaultBaseRate = 30.0
)

// DisplayRate is one row of the rate table.
type DisplayRate struct {
	Currency string
	Buy      float64
	Sale     float64
}

var mockRates = []DisplayRate{
	{Currency: "USD", Buy: 27.55, Sale: 27.65},
	{Currency: "EUR", Buy: 30.00, Sale: 30.10},
}

// MockRates is the table shown when the feed has no usable rows.
func MockRates() []DisplayRate {
	return append([]DisplayRate(nil), mockRates...)
}

// DisplayRates picks the USD and EUR rows, preferring quotes against UAH.
func DisplayRates(rates []core.CurrencyRate) []DisplayRate {
	var out []DisplayRate
	if r, ok := find(rates, codeUSD); ok {
		out = append(out, DisplayRate{Currency: "USD", Buy: r.RateBuy, Sale: r.RateSell})
	}
	if r, ok := find(rates, codeEUR); ok {
		out = append(out, DisplayRate{Currency: "EUR", Buy: r.RateBuy, Sale: r.RateSell})
	}
	if len(out) == 0 {
		return MockRates()
	}
	return out
}

// BaseRate is the EUR sale rate of the table, or 30 without one.
func BaseRate(rows []DisplayRate) float64 {
	for _, r := range rows {
		if r.Currency == "EUR" && r.Sale > 0 {
			return r.Sale
		}
	}
	return defaultBaseRate
}

func find(rates []core.CurrencyRate, code int) (core.CurrencyRate, bool) {
	var fallback *core.CurrencyRate
	for i := range rates {
		if rates[i].CurrencyCodeA != code {
			continue
		}
		if rates[i].CurrencyCodeB == codeUAH {
			return rates[i], true
		}
		if fallback == nil {
			fallback = &rates[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return core.CurrencyRate{}, false
}
