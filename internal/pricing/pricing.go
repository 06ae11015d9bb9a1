// Package pricing computes quote terms from credit score, principal and term.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/loan-desk/internal/apperr"
)

// Rate tiers, in percent per year.
var (
	RatePrime    = decimal.RequireFromString("8.5")
	RateStandard = decimal.RequireFromString("10.5")
	RateSubprime = decimal.RequireFromString("12.5")
)

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// RateFor returns the annual rate for a credit score.
func RateFor(cibil int64) decimal.Decimal {
	switch {
	case cibil >= 750:
		return RatePrime
	case cibil >= 650:
		return RateStandard
	default:
		return RateSubprime
	}
}

// Terms is a priced offer.
type Terms struct {
	Principal     int64
	TermMonths    int64
	Rate          decimal.Decimal
	TotalInterest decimal.Decimal
	EMI           decimal.Decimal
}

// Price computes simple-interest terms: interest accrues on the full
// principal for the whole term and the total is split into equal monthly
// instalments rounded to cents.
func Price(principal, termMonths, cibil int64) (Terms, error) {
	fields := map[string]string{}
	if principal <= 0 {
		fields["loan_amount"] = "must be positive"
	}
	if termMonths <= 0 {
		fields["loan_term"] = "must be positive"
	}
	if len(fields) > 0 {
		return Terms{}, apperr.Validation("price quote", "invalid loan terms", fields)
	}

	p := decimal.NewFromInt(principal)
	n := decimal.NewFromInt(termMonths)
	rate := RateFor(cibil)

	interest := p.Mul(rate).Mul(n).Div(monthsInYear).Div(hundred)
	emi := p.Add(interest).Div(n).Round(2)

	return Terms{
		Principal:     principal,
		TermMonths:    termMonths,
		Rate:          rate,
		TotalInterest: interest,
		EMI:           emi,
	}, nil
}

// RateFloat returns the rate as stored in a quote.
func (t Terms) RateFloat() float64 { return t.Rate.InexactFloat64() }

// EMIFloat returns the instalment as stored in a quote.
func (t Terms) EMIFloat() float64 { return t.EMI.InexactFloat64() }

// TotalInterestFloat returns total interest rounded to cents.
func (t Terms) TotalInterestFloat() float64 { return t.TotalInterest.Round(2).InexactFloat64() }
