package config

import "github.com/shopspring/decimal"

// TightPct returns the tight amount tolerance band as a decimal percent.
func (m MatchingConfig) TightPct() decimal.Decimal {
	return decimal.NewFromFloat(m.TightBandPct)
}

// LoosePct returns the loose amount tolerance band as a decimal percent.
func (m MatchingConfig) LoosePct() decimal.Decimal {
	return decimal.NewFromFloat(m.LooseBandPct)
}

// Epsilon returns the balance check tolerance. The configured value is a
// string so it parses exactly, never through float64.
func (m MatchingConfig) Epsilon() decimal.Decimal {
	eps, err := decimal.NewFromString(m.BalanceEpsilon)
	if err != nil {
		return decimal.NewFromFloat(0.05)
	}
	return eps
}
