// Package delivery serves reconciled results back to tenants, flipping a
// request to DELIVERED on first read and minting short-lived signed URLs
// for externally stored documents.
package delivery

import "time"

// CoverData is one process joined with its cover sheet and participants.
// Cover fields default when no cover sheet exists.
type CoverData struct {
	ProcessID     string         `json:"process_id"`
	ProcessNumber string         `json:"process_number"`
	Instance      int            `json:"instance"`
	CaseValue     *float64       `json:"case_value"`
	ClassCode     string         `json:"class_code"`
	LegalArea     string         `json:"legal_area"`
	Parties       []PartyData    `json:"parties"`
	Attorneys     []AttorneyData `json:"attorneys"`
	DataFound     bool           `json:"data_found"`
}

// PartyData is a participant in the cover response.
type PartyData struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// AttorneyData is a legal representative in the cover response.
type AttorneyData struct {
	Role            string  `json:"role"`
	Name            string  `json:"name"`
	BarRegistration *string `json:"bar_registration"`
}

// DocumentData is one initial document. URL carries a freshly signed,
// short-lived link when the stored reference points into the object
// store; otherwise it carries the raw stored reference.
type DocumentData struct {
	DocumentID      string  `json:"document_id"`
	RequestID       string  `json:"request_id"`
	ProcessID       string  `json:"process_id"`
	URL             *string `json:"url"`
	InitialPetition bool    `json:"initial_petition"`
	Found           bool    `json:"found"`
}

// ProgressData is one docket movement.
type ProgressData struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description"`
}

// CoverResult is the cover-data read outcome. Processing marks a request
// still PENDING or DISPATCHED; it is a signal, not an error.
type CoverResult struct {
	Processing bool
	Processes  []CoverData
}

// DocumentsResult is the document read outcome.
type DocumentsResult struct {
	Processing bool
	Documents  []DocumentData
}

// ProgressResult is the progress read outcome.
type ProgressResult struct {
	Processing bool
	Entries    []ProgressData
}
