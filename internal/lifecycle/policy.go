package lifecycle

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/loan-desk/internal/model"
)

// QuotePolicy decides which request statuses may be quoted.
type QuotePolicy string

const (
	// PolicyPermissive quotes any request that has not reached an offer yet,
	// evaluated or not.
	PolicyPermissive QuotePolicy = "permissive"
	// PolicyStrict quotes only requests the classifier marked ELIGIBLE.
	PolicyStrict QuotePolicy = "strict"
)

// ParseQuotePolicy validates a configured policy name. Empty means permissive.
func ParseQuotePolicy(s string) (QuotePolicy, error) {
	switch QuotePolicy(s) {
	case "", PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", eris.Errorf("lifecycle: unknown quote policy %q", s)
}

// AllowsQuote reports whether a request in status s may be quoted.
func (p QuotePolicy) AllowsQuote(s model.Status) bool {
	if p == PolicyStrict {
		return s == model.StatusEligible
	}
	switch s {
	case model.StatusRequested, model.StatusEligible, model.StatusRejected:
		return true
	}
	return false
}
