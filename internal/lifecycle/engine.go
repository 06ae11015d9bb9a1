// Package lifecycle drives a loan request from submission to disbursement.
// Every operation is one load, mutate, save cycle against the store, run
// under a single-writer gate so concurrent callers never interleave.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/loan-desk/internal/classifier"
	"github.com/sells-group/loan-desk/internal/model"
	"github.com/sells-group/loan-desk/internal/monitoring"
	"github.com/sells-group/loan-desk/internal/store"
)

// Messages returned to clients on success.
const (
	MsgSubmitted = "Loan request submitted successfully"
	MsgEligible  = "ML Model Approved: Customer is Eligible"
	MsgRejected  = "ML Model Declined: Customer is High Risk"
	MsgQuoted    = "Quote generated"
	MsgAccepted  = "Offer Accepted! Waiting for disbursement."
	MsgDisbursed = "Funds Disbursed! Loan Account Created."
)

// Options tunes an Engine. The zero value is usable.
type Options struct {
	Policy  QuotePolicy
	Metrics *monitoring.Metrics
	// Now stamps account start dates; defaults to time.Now.
	Now func() time.Time
}

// Engine applies lifecycle transitions to the stored document.
type Engine struct {
	store      store.Store
	classifier classifier.Backend
	policy     QuotePolicy
	metrics    *monitoring.Metrics
	now        func() time.Time
	gate       *semaphore.Weighted
}

// New creates an Engine over st using cls for eligibility decisions.
func New(st store.Store, cls classifier.Backend, opts Options) *Engine {
	if opts.Policy == "" {
		opts.Policy = PolicyPermissive
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      st,
		classifier: cls,
		policy:     opts.Policy,
		metrics:    opts.Metrics,
		now:        opts.Now,
		gate:       semaphore.NewWeighted(1),
	}
}

// Policy returns the quote policy in effect.
func (e *Engine) Policy() QuotePolicy { return e.policy }

// ClassifierKind returns the kind of the active classifier backend.
func (e *Engine) ClassifierKind() classifier.Kind { return e.classifier.Kind() }

// Tx is one load-mutate-save transaction. ID correlates its log lines.
type Tx struct {
	ID  string
	Op  string
	Doc *model.Document
	Log *zap.Logger
}

// update runs fn against a freshly loaded document and saves the result
// only when fn succeeds.
func (e *Engine) update(ctx context.Context, op string, fn func(tx *Tx) error) error {
	err := e.run(ctx, op, true, fn)
	e.metrics.ObserveTransition(op, err)
	return err
}

// view runs fn against a freshly loaded document without saving.
func (e *Engine) view(ctx context.Context, op string, fn func(tx *Tx) error) error {
	return e.run(ctx, op, false, fn)
}

func (e *Engine) run(ctx context.Context, op string, write bool, fn func(tx *Tx) error) error {
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return eris.Wrap(err, "lifecycle: acquire writer")
	}
	defer e.gate.Release(1)

	tx := &Tx{ID: uuid.NewString(), Op: op}
	tx.Log = zap.L().With(zap.String("op", op), zap.String("tx", tx.ID))

	doc, err := e.store.Load(ctx)
	if err != nil {
		tx.Log.Error("lifecycle: load failed", zap.Error(err))
		return eris.Wrap(err, "lifecycle: load document")
	}
	tx.Doc = doc

	if err := fn(tx); err != nil {
		tx.Log.Info("lifecycle: transition refused", zap.Error(err))
		return err
	}
	if !write {
		return nil
	}

	if err := e.store.Save(ctx, doc); err != nil {
		tx.Log.Error("lifecycle: save failed", zap.Error(err))
		return eris.Wrap(err, "lifecycle: save document")
	}
	return nil
}
