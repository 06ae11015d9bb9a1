package model

// Status is the lifecycle state of a loan request.
type Status string

const (
	StatusRequested     Status = "REQUESTED"
	StatusEligible      Status = "ELIGIBLE"
	StatusRejected      Status = "REJECTED"
	StatusOfferSent     Status = "OFFER_SENT"
	StatusOfferAccepted Status = "OFFER_ACCEPTED"
	StatusDisbursed     Status = "DISBURSED"
)

// Stage returns the position of s in the lifecycle. ELIGIBLE and REJECTED
// share a stage; unknown statuses return -1.
func (s Status) Stage() int {
	switch s {
	case StatusRequested:
		return 0
	case StatusEligible, StatusRejected:
		return 1
	case StatusOfferSent:
		return 2
	case StatusOfferAccepted:
		return 3
	case StatusDisbursed:
		return 4
	default:
		return -1
	}
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	return s.Stage() >= 0
}

// AccountStatusActive is the only status a freshly disbursed account carries.
const AccountStatusActive = "ACTIVE"

// LoanRequest is a customer's application together with its lifecycle state.
type LoanRequest struct {
	RequestID int64       `json:"request_id"`
	UserID    int64       `json:"user_id"`
	Features  RawFeatures `json:"features"`
	Status    Status      `json:"status"`
}

// LoanQuote is the priced offer generated for an eligible request.
type LoanQuote struct {
	QuoteID        int64   `json:"quote_id"`
	RequestID      int64   `json:"request_id"`
	ApprovedAmount int64   `json:"approved_amount"`
	InterestRate   float64 `json:"interest_rate"`
	EMIAmount      float64 `json:"emi_amount"`
	Status         Status  `json:"status"`
	TermMonths     int64   `json:"term_months,omitempty"`
	TotalInterest  float64 `json:"total_interest,omitempty"`
}

// LoanAccount is created once a request has been disbursed.
type LoanAccount struct {
	AccountID         int64  `json:"account_id"`
	UserID            int64  `json:"user_id"`
	OriginalRequestID int64  `json:"original_request_id"`
	PrincipalBalance  int64  `json:"principal_balance"`
	StartDate         string `json:"start_date"`
	Status            string `json:"status"`
}

// DateLayout is the layout of LoanAccount.StartDate.
const DateLayout = "2006-01-02"
