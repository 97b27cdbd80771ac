package research

import "fmt"

// Status is the lifecycle state of a research request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDispatched Status = "DISPATCHED"
	StatusCompleted  Status = "COMPLETED"
	StatusDelivered  Status = "DELIVERED"
)

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusDispatched: 1,
	StatusCompleted:  2,
	StatusDelivered:  3,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Ready reports whether a request in this status has result data to
// serve. PENDING and DISPATCHED are both "still processing" for reads.
func (s Status) Ready() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// CanTransition reports whether a request may move from one status to
// the next. The lifecycle only advances forward; a DISPATCHED request
// re-entering the export batch is handled by the dispatch selection
// predicate, not as a status transition.
func CanTransition(from, to Status) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// EnsureTransition returns an error describing an illegal transition.
func EnsureTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("research: invalid transition %s -> %s", from, to)
	}
	return nil
}
