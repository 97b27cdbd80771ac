package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"caseflow/research"
	"caseflow/tenant"
)

// errInvalidPayload marks schema violations in request bodies.
var errInvalidPayload = errors.New("invalid payload")

func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req tenant.AuthenticateRequest
	if err := decodeStrict(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name == "" || req.Secret == "" {
		s.writeError(w, r, fmt.Errorf("%w: tenant_name and shared_secret are required", errInvalidPayload))
		return
	}

	token, err := s.tenants.Authenticate(r.Context(), req.Name, req.Secret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// The claim is returned as a plain-text body.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

type createRequestPayload struct {
	Instance       int      `json:"instance"`
	ProcessNumbers []string `json:"process_numbers"`
}

type createRequestResponse struct {
	RequestID string `json:"request_id"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var payload createRequestPayload
	if err := decodeStrict(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(payload.ProcessNumbers) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: process_numbers is required", errInvalidPayload))
		return
	}

	req, err := s.research.Create(r.Context(), research.CreateParams{
		TenantID:       actingTenant(r.Context()),
		Instance:       payload.Instance,
		ProcessNumbers: payload.ProcessNumbers,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createRequestResponse{RequestID: req.ID})
}

type requestLookupPayload struct {
	RequestID string `json:"request_id"`
}

func (s *Server) handleFetchCover(w http.ResponseWriter, r *http.Request) {
	var payload requestLookupPayload
	if err := decodeStrict(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if payload.RequestID == "" {
		s.writeError(w, r, fmt.Errorf("%w: request_id is required", errInvalidPayload))
		return
	}

	res, err := s.gateway.FetchCoverData(r.Context(), payload.RequestID, actingTenant(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Processing {
		writeProcessing(w)
		return
	}
	writeJSON(w, http.StatusOK, res.Processes)
}

func (s *Server) handleFetchDocuments(w http.ResponseWriter, r *http.Request) {
	var payload requestLookupPayload
	if err := decodeStrict(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if payload.RequestID == "" {
		s.writeError(w, r, fmt.Errorf("%w: request_id is required", errInvalidPayload))
		return
	}

	res, err := s.gateway.FetchDocuments(r.Context(), payload.RequestID, actingTenant(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Processing {
		writeProcessing(w)
		return
	}
	writeJSON(w, http.StatusOK, res.Documents)
}

type progressLookupPayload struct {
	ProcessNumber string `json:"process_number"`
}

func (s *Server) handleFetchProgress(w http.ResponseWriter, r *http.Request) {
	var payload progressLookupPayload
	if err := decodeStrict(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if payload.ProcessNumber == "" {
		s.writeError(w, r, fmt.Errorf("%w: process_number is required", errInvalidPayload))
		return
	}

	res, err := s.gateway.FetchProgress(r.Context(), payload.ProcessNumber, actingTenant(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Processing {
		writeProcessing(w)
		return
	}
	writeJSON(w, http.StatusOK, res.Entries)
}
