package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Sequences holds the last issued id per collection. Ids are never reused,
// even if records are removed by hand.
type Sequences struct {
	LoanRequests int64 `json:"loan_requests"`
	LoanQuotes   int64 `json:"loan_quotes"`
	LoanAccounts int64 `json:"loan_accounts"`
}

// Document is the whole persisted state of the service.
type Document struct {
	Users        []json.RawMessage `json:"users"`
	LoanRequests []LoanRequest     `json:"loan_requests"`
	LoanQuotes   []LoanQuote       `json:"loan_quotes"`
	LoanAccounts []LoanAccount     `json:"loan_accounts"`
	Sequences    *Sequences        `json:"sequences,omitempty"`
}

// NewDocument returns the empty document used to seed a fresh store.
func NewDocument() *Document {
	return &Document{
		Users:        []json.RawMessage{},
		LoanRequests: []LoanRequest{},
		LoanQuotes:   []LoanQuote{},
		LoanAccounts: []LoanAccount{},
	}
}

// DecodeDocument parses a stored document, filling collections missing from
// older files with empty lists.
func DecodeDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, eris.Wrap(err, "model: decode document")
	}
	doc.normalize()
	return doc, nil
}

func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []json.RawMessage{}
	}
	if d.LoanRequests == nil {
		d.LoanRequests = []LoanRequest{}
	}
	if d.LoanQuotes == nil {
		d.LoanQuotes = []LoanQuote{}
	}
	if d.LoanAccounts == nil {
		d.LoanAccounts = []LoanAccount{}
	}
}

// seed initializes sequences for documents that predate them.
func (d *Document) seed() *Sequences {
	if d.Sequences == nil {
		s := &Sequences{}
		for _, r := range d.LoanRequests {
			s.LoanRequests = max(s.LoanRequests, r.RequestID)
		}
		for _, q := range d.LoanQuotes {
			s.LoanQuotes = max(s.LoanQuotes, q.QuoteID)
		}
		for _, a := range d.LoanAccounts {
			s.LoanAccounts = max(s.LoanAccounts, a.AccountID)
		}
		d.Sequences = s
	}
	return d.Sequences
}

// NextRequestID reserves the next loan request id.
func (d *Document) NextRequestID() int64 {
	s := d.seed()
	for _, r := range d.LoanRequests {
		s.LoanRequests = max(s.LoanRequests, r.RequestID)
	}
	s.LoanRequests++
	return s.LoanRequests
}

// NextQuoteID reserves the next quote id.
func (d *Document) NextQuoteID() int64 {
	s := d.seed()
	for _, q := range d.LoanQuotes {
		s.LoanQuotes = max(s.LoanQuotes, q.QuoteID)
	}
	s.LoanQuotes++
	return s.LoanQuotes
}

// NextAccountID reserves the next account id.
func (d *Document) NextAccountID() int64 {
	s := d.seed()
	for _, a := range d.LoanAccounts {
		s.LoanAccounts = max(s.LoanAccounts, a.AccountID)
	}
	s.LoanAccounts++
	return s.LoanAccounts
}

// FindRequest returns a pointer into LoanRequests, or nil.
func (d *Document) FindRequest(id int64) *LoanRequest {
	for i := range d.LoanRequests {
		if d.LoanRequests[i].RequestID == id {
			return &d.LoanRequests[i]
		}
	}
	return nil
}

// FindQuote returns the quote issued for a request, or nil.
func (d *Document) FindQuote(requestID int64) *LoanQuote {
	for i := range d.LoanQuotes {
		if d.LoanQuotes[i].RequestID == requestID {
			return &d.LoanQuotes[i]
		}
	}
	return nil
}

// FindAccount returns the account opened for a request, or nil.
func (d *Document) FindAccount(requestID int64) *LoanAccount {
	for i := range d.LoanAccounts {
		if d.LoanAccounts[i].OriginalRequestID == requestID {
			return &d.LoanAccounts[i]
		}
	}
	return nil
}

// Validate checks id uniqueness and that quotes and accounts reference
// existing requests.
func (d *Document) Validate() error {
	requests := make(map[int64]bool, len(d.LoanRequests))
	for _, r := range d.LoanRequests {
		if requests[r.RequestID] {
			return eris.Errorf("model: duplicate request_id %d", r.RequestID)
		}
		if !r.Status.Valid() {
			return eris.Errorf("model: request %d has unknown status %q", r.RequestID, r.Status)
		}
		requests[r.RequestID] = true
	}

	quotes := make(map[int64]bool, len(d.LoanQuotes))
	quoted := make(map[int64]bool, len(d.LoanQuotes))
	for _, q := range d.LoanQuotes {
		if quotes[q.QuoteID] {
			return eris.Errorf("model: duplicate quote_id %d", q.QuoteID)
		}
		if !requests[q.RequestID] {
			return eris.Errorf("model: quote %d references missing request %d", q.QuoteID, q.RequestID)
		}
		if quoted[q.RequestID] {
			return eris.Errorf("model: request %d has more than one quote", q.RequestID)
		}
		quotes[q.QuoteID] = true
		quoted[q.RequestID] = true
	}

	accounts := make(map[int64]bool, len(d.LoanAccounts))
	opened := make(map[int64]bool, len(d.LoanAccounts))
	for _, a := range d.LoanAccounts {
		if accounts[a.AccountID] {
			return eris.Errorf("model: duplicate account_id %d", a.AccountID)
		}
		if !requests[a.OriginalRequestID] {
			return eris.Errorf("model: account %d references missing request %d", a.AccountID, a.OriginalRequestID)
		}
		if opened[a.OriginalRequestID] {
			return eris.Errorf("model: request %d has more than one account", a.OriginalRequestID)
		}
		accounts[a.AccountID] = true
		opened[a.OriginalRequestID] = true
	}
	return nil
}
