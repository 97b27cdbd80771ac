// Package reconcile ingests the result table produced by the external
// fulfillment actor and merges it back into the request store without
// creating duplicates on re-runs.
package reconcile

import "time"

// ResultRow is one row of the result table, grouped by request id then
// process number. Cover, document, party, and attorney fields are read
// from a group's first row only; progress fields are read from every row.
type ResultRow struct {
	RequestID           string
	ProcessNumber       string
	CaseValue           *float64
	ClassCode           string
	LegalArea           string
	DocumentKey         string
	Parties             string
	Attorneys           string
	ProgressAt          *time.Time
	ProgressDescription string
}

// Participant is one parsed entry of a delimited party or attorney list.
type Participant struct {
	Role            string
	Name            string
	BarRegistration string
}

// CoverSheetParams carries the cover data created from a group's first row.
type CoverSheetParams struct {
	ProcessID string
	CaseValue float64
	ClassCode string
	LegalArea string
}
