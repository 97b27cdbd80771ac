package research

import "time"

// Request is a batch of process numbers submitted by a tenant for lookup.
type Request struct {
	ID          string
	TenantID    string
	Instance    int
	Status      Status
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// ProcessRecord is one looked-up legal process within a request. Its
// process number is unique only within the parent request.
type ProcessRecord struct {
	ID            string
	RequestID     string
	ProcessNumber string
	DataFound     bool
}

// CoverSheet holds summary metadata for a process. At most one exists
// per process record and it is immutable once created.
type CoverSheet struct {
	ID        string
	ProcessID string
	CaseValue *float64
	ClassCode string
	LegalArea string
}

// InitialDocument references an externally stored filing document.
type InitialDocument struct {
	ID              string
	ProcessID       string
	StorageRef      *string
	Found           bool
	InitialPetition bool
}

// ProgressEntry is a single docket movement for a process. The pair
// (OccurredAt, Description) is the natural key within a process.
type ProgressEntry struct {
	ID          string
	ProcessID   string
	OccurredAt  time.Time
	Description string
}

// Party is a participant in a process, keyed by (Role, Name).
type Party struct {
	ID        string
	ProcessID string
	Role      string
	Name      string
}

// Attorney is a legal representative in a process, keyed by (Role, Name).
// The bar registration is informational and not part of the key.
type Attorney struct {
	ID              string
	ProcessID       string
	Role            string
	Name            string
	BarRegistration *string
}

// CreateParams enumerates the fields required to submit a new request.
type CreateParams struct {
	TenantID       string
	Instance       int
	ProcessNumbers []string
}
