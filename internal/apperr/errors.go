// Package apperr classifies loan desk failures by kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failure so callers can tell the reported error categories apart.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindInvalidState          Kind = "invalid_state"
	KindAuth                  Kind = "auth"
	KindClassifierUnavailable Kind = "classifier_unavailable"
	KindInternal              Kind = "internal"
)

// Error is a classified domain error. Op names the operation that failed,
// Fields carries per-field detail for validation failures.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed or missing input.
func Validation(op, msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg, Fields: fields}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(op, entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// InvalidState reports an operation attempted from the wrong lifecycle state.
func InvalidState(op, msg string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: msg}
}

// Auth reports rejected credentials.
func Auth(op string) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: "invalid credentials"}
}

// ClassifierUnavailable reports that no trained classifier could be loaded.
func ClassifierUnavailable(op string, err error) *Error {
	return &Error{Kind: KindClassifierUnavailable, Op: op, Message: "trained classifier unavailable", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code used by the HTTP API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
