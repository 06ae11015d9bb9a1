package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/apperr"
)

const internalMessage = "internal server error"

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// writeError maps err to a status code and the client error body.
// Unclassified errors are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindClassifierUnavailable {
		zap.L().Error("api: request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: internalMessage, Kind: string(apperr.KindInternal)})
		return
	}
	writeJSON(w, apperr.HTTPStatus(appErr.Kind), errorBody{
		Error:  appErr.Message,
		Kind:   string(appErr.Kind),
		Fields: appErr.Fields,
	})
}
