package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/loan-desk/internal/model"
)

// PortfolioSnapshot holds a point-in-time view of the loan book.
type PortfolioSnapshot struct {
	ByStatus map[model.Status]int `json:"by_status"`

	Requests int `json:"requests"`
	Quotes   int `json:"quotes"`
	Accounts int `json:"accounts"`

	// Decided counts requests past REQUESTED; Rejected those that ended REJECTED.
	Decided       int     `json:"decided"`
	Rejected      int     `json:"rejected"`
	RejectionRate float64 `json:"rejection_rate"`

	// AcceptedBacklog counts offers accepted but not yet disbursed.
	AcceptedBacklog      int   `json:"accepted_backlog"`
	OutstandingPrincipal int64 `json:"outstanding_principal"`

	ClassifierKind string    `json:"classifier_kind"`
	CollectedAt    time.Time `json:"collected_at"`
}

// DocumentLoader is the read side of the store.
type DocumentLoader interface {
	Load(ctx context.Context) (*model.Document, error)
}

// LoaderFunc adapts a snapshot function to DocumentLoader.
type LoaderFunc func(ctx context.Context) (*model.Document, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (*model.Document, error) {
	return f(ctx)
}

// Collector builds portfolio snapshots from the store.
type Collector struct {
	store          DocumentLoader
	classifierKind string
}

// NewCollector creates a new portfolio collector. classifierKind is reported
// verbatim in every snapshot.
func NewCollector(st DocumentLoader, classifierKind string) *Collector {
	return &Collector{store: st, classifierKind: classifierKind}
}

// Collect gathers a snapshot of the current document.
func (c *Collector) Collect(ctx context.Context) (*PortfolioSnapshot, error) {
	doc, err := c.store.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load document")
	}
	snap := Summarize(doc)
	snap.ClassifierKind = c.classifierKind
	return snap, nil
}

// Summarize computes a snapshot from a document without touching the store.
func Summarize(doc *model.Document) *PortfolioSnapshot {
	snap := &PortfolioSnapshot{
		ByStatus:    make(map[model.Status]int),
		Requests:    len(doc.LoanRequests),
		Quotes:      len(doc.LoanQuotes),
		Accounts:    len(doc.LoanAccounts),
		CollectedAt: time.Now().UTC(),
	}

	for _, r := range doc.LoanRequests {
		snap.ByStatus[r.Status]++
		if r.Status.Stage() > model.StatusRequested.Stage() {
			snap.Decided++
		}
	}
	snap.Rejected = snap.ByStatus[model.StatusRejected]
	snap.AcceptedBacklog = snap.ByStatus[model.StatusOfferAccepted]
	if snap.Decided > 0 {
		snap.RejectionRate = float64(snap.Rejected) / float64(snap.Decided)
	}

	for _, a := range doc.LoanAccounts {
		if a.Status == model.AccountStatusActive {
			snap.OutstandingPrincipal += a.PrincipalBalance
		}
	}
	return snap
}
