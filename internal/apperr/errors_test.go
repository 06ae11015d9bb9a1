package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := Validation("submit", "invalid input data", map[string]string{
		"loan_term":   "must be greater than zero",
		"cibil_score": "missing",
	})
	assert.Equal(t, "submit: invalid input data (cibil_score: missing; loan_term: must be greater than zero)", err.Error())

	assert.Equal(t, "accept: request 9 not found", NotFound("accept", "request", 9).Error())

	wrapped := ClassifierUnavailable("load", errors.New("no such file"))
	assert.Equal(t, "load: trained classifier unavailable: no such file", wrapped.Error())
	assert.ErrorContains(t, errors.Unwrap(wrapped), "no such file")
}

func TestKindOf_ThroughWraps(t *testing.T) {
	base := InvalidState("disburse", "Cannot disburse funds.")
	err := eris.Wrap(eris.Wrap(base, "loan disburse"), "cli")

	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.True(t, Is(err, KindInvalidState))
	assert.False(t, Is(err, KindNotFound))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "Cannot disburse funds.", e.Message)
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))

	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInvalidState, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindAuth, http.StatusUnauthorized},
		{KindClassifierUnavailable, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}
