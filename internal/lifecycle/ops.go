package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/classifier"
	"github.com/sells-group/loan-desk/internal/model"
	"github.com/sells-group/loan-desk/internal/pricing"
)

// Messages for refused transitions.
const (
	msgAlreadyEvaluated = "Request already evaluated"
	msgNotQuotable      = "Request cannot be quoted"
	msgInvalidState     = "Invalid request state"
	msgCannotDisburse   = "Cannot disburse funds."
)

// Outcome is the result of an eligibility evaluation.
type Outcome struct {
	Status  model.Status `json:"status"`
	Message string       `json:"message"`
}

// Submit validates and stores a new request in REQUESTED state and returns
// its id. Feature values are normalised to plain integers.
func (e *Engine) Submit(ctx context.Context, userID int64, raw model.RawFeatures) (int64, error) {
	fv, err := raw.Parse()
	if err != nil {
		e.metrics.ObserveTransition("submit", err)
		return 0, err
	}

	var id int64
	err = e.update(ctx, "submit", func(tx *Tx) error {
		id = tx.Doc.NextRequestID()
		tx.Doc.LoanRequests = append(tx.Doc.LoanRequests, model.LoanRequest{
			RequestID: id,
			UserID:    userID,
			Features:  fv.Raw(),
			Status:    model.StatusRequested,
		})
		tx.Log.Info("loan request submitted",
			zap.Int64("request_id", id),
			zap.Int64("user_id", userID),
			zap.Int64("loan_amount", fv.LoanAmount),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EvaluateEligibility runs the classifier on a REQUESTED request and moves
// it to ELIGIBLE or REJECTED.
func (e *Engine) EvaluateEligibility(ctx context.Context, requestID int64) (Outcome, error) {
	var out Outcome
	err := e.update(ctx, "evaluate", func(tx *Tx) error {
		req := tx.Doc.FindRequest(requestID)
		if req == nil {
			return apperr.NotFound("evaluate eligibility", "request", requestID)
		}
		if req.Status != model.StatusRequested {
			return apperr.InvalidState("evaluate eligibility", msgAlreadyEvaluated)
		}

		fv, err := req.Features.Parse()
		if err != nil {
			return err
		}
		label, err := e.classifier.Predict(fv)
		if err != nil {
			return err
		}
		e.metrics.ObserveDecision(string(e.classifier.Kind()), label.String())

		if label.Approved() {
			out = Outcome{Status: model.StatusEligible, Message: MsgEligible}
		} else {
			out = Outcome{Status: model.StatusRejected, Message: MsgRejected}
		}
		req.Status = out.Status

		tx.Log.Info("eligibility evaluated",
			zap.Int64("request_id", requestID),
			zap.String("status", string(out.Status)),
			zap.String("backend", string(e.classifier.Kind())),
		)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// GenerateQuote prices a request and records the offer. Each request is
// quoted at most once; the quote keeps its OFFER_SENT status for life.
func (e *Engine) GenerateQuote(ctx context.Context, requestID int64) (*model.LoanQuote, error) {
	var quote model.LoanQuote
	err := e.update(ctx, "quote", func(tx *Tx) error {
		req := tx.Doc.FindRequest(requestID)
		if req == nil {
			return apperr.NotFound("generate quote", "request", requestID)
		}
		if tx.Doc.FindQuote(requestID) != nil || !e.policy.AllowsQuote(req.Status) {
			return apperr.InvalidState("generate quote", msgNotQuotable)
		}

		fv, err := req.Features.Parse()
		if err != nil {
			return err
		}
		terms, err := pricing.Price(fv.LoanAmount, fv.LoanTerm, fv.CibilScore)
		if err != nil {
			return err
		}

		quote = model.LoanQuote{
			QuoteID:        tx.Doc.NextQuoteID(),
			RequestID:      requestID,
			ApprovedAmount: terms.Principal,
			InterestRate:   terms.RateFloat(),
			EMIAmount:      terms.EMIFloat(),
			Status:         model.StatusOfferSent,
			TermMonths:     terms.TermMonths,
			TotalInterest:  terms.TotalInterestFloat(),
		}
		tx.Doc.LoanQuotes = append(tx.Doc.LoanQuotes, quote)
		req.Status = model.StatusOfferSent

		tx.Log.Info("quote generated",
			zap.Int64("request_id", requestID),
			zap.Int64("quote_id", quote.QuoteID),
			zap.Float64("interest_rate", quote.InterestRate),
			zap.Float64("emi", quote.EMIAmount),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// AcceptOffer moves an OFFER_SENT request to OFFER_ACCEPTED. A missing
// request is reported as an invalid state, like any other refusal.
func (e *Engine) AcceptOffer(ctx context.Context, requestID int64) error {
	return e.update(ctx, "accept", func(tx *Tx) error {
		req := tx.Doc.FindRequest(requestID)
		if req == nil || req.Status != model.StatusOfferSent {
			return apperr.InvalidState("accept offer", msgInvalidState)
		}
		req.Status = model.StatusOfferAccepted
		tx.Log.Info("offer accepted", zap.Int64("request_id", requestID))
		return nil
	})
}

// Disburse opens an ACTIVE loan account for an accepted offer and marks the
// request DISBURSED.
func (e *Engine) Disburse(ctx context.Context, requestID int64) (*model.LoanAccount, error) {
	var acct model.LoanAccount
	err := e.update(ctx, "disburse", func(tx *Tx) error {
		req := tx.Doc.FindRequest(requestID)
		quote := tx.Doc.FindQuote(requestID)
		if req == nil || quote == nil || req.Status != model.StatusOfferAccepted {
			return apperr.InvalidState("disburse loan", msgCannotDisburse)
		}

		acct = model.LoanAccount{
			AccountID:         tx.Doc.NextAccountID(),
			UserID:            req.UserID,
			OriginalRequestID: requestID,
			PrincipalBalance:  quote.ApprovedAmount,
			StartDate:         e.now().Format(model.DateLayout),
			Status:            model.AccountStatusActive,
		}
		tx.Doc.LoanAccounts = append(tx.Doc.LoanAccounts, acct)
		req.Status = model.StatusDisbursed

		tx.Log.Info("loan disbursed",
			zap.Int64("request_id", requestID),
			zap.Int64("account_id", acct.AccountID),
			zap.Int64("principal", acct.PrincipalBalance),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Snapshot returns the whole stored document.
func (e *Engine) Snapshot(ctx context.Context) (*model.Document, error) {
	var doc *model.Document
	err := e.view(ctx, "snapshot", func(tx *Tx) error {
		doc = tx.Doc
		return nil
	})
	return doc, err
}

// Predict classifies a feature vector without touching the store.
func (e *Engine) Predict(fv model.FeatureVector) (classifier.Label, error) {
	label, err := e.classifier.Predict(fv)
	if err != nil {
		return classifier.Reject, err
	}
	e.metrics.ObserveDecision(string(e.classifier.Kind()), label.String())
	return label, nil
}
