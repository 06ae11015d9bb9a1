package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/lifecycle"
	"github.com/sells-group/loan-desk/internal/model"
)

// defaultUserID is assumed when a loan request names no user.
const defaultUserID = 1

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.login.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"status":  "error",
			"message": "Too many login attempts",
		})
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.auth.Login(body.Username, body.Password)
	if err != nil {
		zap.L().Info("api: login rejected", zap.String("username", body.Username))
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"status":  "error",
			"message": "Invalid credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"role":     sess.Role,
		"redirect": sess.Redirect,
		"user_id":  sess.UserID,
	})
}

func (s *Server) handleRequestLoan(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		meta struct {
			UserID json.RawMessage `json:"user_id"`
		}
		features model.RawFeatures
	)
	if err := json.Unmarshal(body, &meta); err != nil {
		writeError(w, r, apperr.Validation("request loan", "invalid request body", nil))
		return
	}
	if err := json.Unmarshal(body, &features); err != nil {
		writeError(w, r, apperr.Validation("request loan", "invalid request body", nil))
		return
	}

	userID := int64(defaultUserID)
	if !isNull(meta.UserID) {
		id, err := model.ParseInteger(meta.UserID)
		if err != nil {
			writeError(w, r, apperr.Validation("request loan", "invalid input data",
				map[string]string{"user_id": err.Error()}))
			return
		}
		userID = id
	}

	id, err := s.engine.Submit(r.Context(), userID, features)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    lifecycle.MsgSubmitted,
		"request_id": id,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.engine.EvaluateEligibility(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerateQuote(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := s.engine.GenerateQuote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": lifecycle.MsgQuoted,
		"quote":   quote,
	})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.AcceptOffer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": lifecycle.MsgAccepted,
	})
}

func (s *Server) handleDisburse(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := s.engine.Disburse(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": lifecycle.MsgDisbursed,
		"account": acct,
	})
}

func (s *Server) handleDumpState(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// decodeBody reads a JSON body of at most maxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("decode body", "request body too large", nil)
		}
		return apperr.Validation("decode body", "invalid request body", nil)
	}
	return nil
}

// decodeRequestID reads {"request_id": n}. Integer strings are accepted.
func decodeRequestID(w http.ResponseWriter, r *http.Request) (int64, error) {
	var body struct {
		RequestID json.RawMessage `json:"request_id"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return 0, err
	}
	id, err := model.ParseInteger(body.RequestID)
	if err != nil {
		return 0, apperr.Validation("decode request id", "invalid input data",
			map[string]string{"request_id": err.Error()})
	}
	return id, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
