package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"caseflow/delivery"
	"caseflow/research"
	"caseflow/tenant"
)

// errorBody is the structured error payload returned to clients.
type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinel errors onto the HTTP taxonomy.
// Anything unrecognized becomes a generic internal error so internals
// never leak.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrUnauthenticated), errors.Is(err, tenant.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
	case errors.Is(err, delivery.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, research.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "request not found"})
	case errors.Is(err, research.ErrProcessNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "process not found"})
	case errors.Is(err, errInvalidPayload):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeProcessing answers a read that arrived before reconciliation.
func writeProcessing(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}
