// Package core provides money parsing and rounding utilities.
//
// Amounts are carried as shopspring decimals end to end. Rounding to a currency's
// minor units happens once, when a figure leaves the service.
package core

import (
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an exact amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an optional
// leading sign. No rounding is applied.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-3")     -> -3, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError("amount", "is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	digits := strings.TrimLeft(s, "+-")
	if digits == "" || strings.Count(digits, ".") > 1 {
		return decimal.Zero, NewValidationError("amount", "is not a decimal number")
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, NewValidationError("amount", "is not a decimal number")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "is not a decimal number")
	}
	return d, nil
}

// CurrencyFraction returns the number of minor-unit digits of an ISO 4217 code,
// e.g. 2 for USD and 0 for KRW. Unknown codes default to 2.
func CurrencyFraction(code string) int32 {
	if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// IsKnownCurrency reports whether code is an ISO 4217 currency known to go-money.
func IsKnownCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// RoundingRule is the per-user tag selecting how totals are rounded for display.
type RoundingRule string

const (
	RoundBankers  RoundingRule = "bankers_rounding"
	RoundHalfUp   RoundingRule = "half_up"
	RoundTruncate RoundingRule = "truncate"
	RoundNone     RoundingRule = "none"
)

// Rounder rounds an amount to a number of decimal places.
type Rounder interface {
	Round(d decimal.Decimal, places int32) decimal.Decimal
}

type bankersRounder struct{}

func (bankersRounder) Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

type halfUpRounder struct{}

func (halfUpRounder) Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

type truncateRounder struct{}

func (truncateRounder) Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Truncate(places)
}

type noopRounder struct{}

func (noopRounder) Round(d decimal.Decimal, _ int32) decimal.Decimal {
	return d
}

var rounders = map[RoundingRule]Rounder{
	RoundBankers:  bankersRounder{},
	RoundHalfUp:   halfUpRounder{},
	RoundTruncate: truncateRounder{},
	RoundNone:     noopRounder{},
}

// Validate accepts the known rules and the empty rule (bankers rounding).
func (r RoundingRule) Validate() error {
	if r == "" {
		return nil
	}
	if _, ok := rounders[r]; !ok {
		return NewValidationError("roundingRule", "must be one of bankers_rounding, half_up, truncate, none")
	}
	return nil
}

// Rounder returns the strategy for the rule, bankers rounding when unset or unknown.
func (r RoundingRule) Rounder() Rounder {
	if rd, ok := rounders[r]; ok {
		return rd
	}
	return bankersRounder{}
}

// RoundMoney rounds amount to the minor units of currency using rule.
func RoundMoney(amount decimal.Decimal, currency string, rule RoundingRule) decimal.Decimal {
	return rule.Rounder().Round(amount, CurrencyFraction(currency))
}
