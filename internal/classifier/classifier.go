// Package classifier decides loan eligibility from a feature vector, either
// with a trained logistic model or with a credit score rule.
package classifier

import (
	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/model"
)

// Label is the binary eligibility outcome.
type Label int

const (
	Reject  Label = 0
	Approve Label = 1
)

// Approved reports whether l is Approve.
func (l Label) Approved() bool {
	return l == Approve
}

func (l Label) String() string {
	if l.Approved() {
		return "approve"
	}
	return "reject"
}

// Kind names the backend variant in use.
type Kind string

const (
	KindTrained  Kind = "trained"
	KindFallback Kind = "fallback"
)

// Backend predicts eligibility. Implementations must be safe for concurrent use.
type Backend interface {
	Predict(fv model.FeatureVector) (Label, error)
	Kind() Kind
}

// FallbackCibilThreshold is the minimum credit score the fallback rule approves.
const FallbackCibilThreshold = 650

// Fallback approves any applicant whose credit score meets the threshold.
type Fallback struct{}

func (Fallback) Predict(fv model.FeatureVector) (Label, error) {
	if fv.CibilScore >= FallbackCibilThreshold {
		return Approve, nil
	}
	return Reject, nil
}

func (Fallback) Kind() Kind { return KindFallback }

// Open loads the trained backend from path. When the artifact is missing
// or unusable it returns the Fallback backend together with a
// ClassifierUnavailable error describing why; the returned Backend is
// always usable.
func Open(path string) (Backend, error) {
	if path == "" {
		return Fallback{}, apperr.ClassifierUnavailable("classifier: open", errNoPath)
	}
	art, err := LoadArtifact(path)
	if err != nil {
		return Fallback{}, apperr.ClassifierUnavailable("classifier: open", err)
	}
	lr, err := NewLogistic(art)
	if err != nil {
		return Fallback{}, apperr.ClassifierUnavailable("classifier: open", err)
	}
	return lr, nil
}
