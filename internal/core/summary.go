package core

import "github.com/shopspring/decimal"

// SeriesDays is the length of the trailing net-worth series.
const SeriesDays = 30

type (
	// Summary is the dashboard valuation of one user at one day. Amounts are unrounded;
	// rounding happens when the summary is encoded for a client.
	Summary struct {
		UserID            string
		AsOf              Date
		BaseCurrency      string
		RoundingRule      RoundingRule
		TotalNetWorthBase decimal.Decimal
		ByCurrency        []CurrencyTotal
		Last30DaysSeries  []SeriesPoint
		CategoryBreakdown []CategoryTotal
		// FallbackRates lists the currency pairs that were valued at the fallback rate 1.
		FallbackRates []string
		// Unpriced lists holdings that contributed zero because no price was known.
		Unpriced []string
	}

	CurrencyTotal struct {
		Currency string
		Total    decimal.Decimal
	}

	SeriesPoint struct {
		Date  Date
		Value decimal.Decimal
	}

	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}
)
