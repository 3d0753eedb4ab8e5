package loan

import "fmt"

type Status string

const (
	StatusRequested           Status = "requested"
	StatusPendingVerification Status = "pending_verification"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusActive              Status = "active"
	StatusRepaid              Status = "repaid"
	StatusLiquidated          Status = "liquidated"
)

// edges is the complete status graph; anything not listed is illegal.
var edges = map[Status][]Status{
	StatusRequested:           {StatusPendingVerification},
	StatusPendingVerification: {StatusApproved, StatusRejected},
	StatusApproved:            {StatusActive},
	StatusActive:              {StatusRepaid, StatusLiquidated},
}

var allStatuses = []Status{
	StatusRequested, StatusPendingVerification, StatusApproved, StatusRejected,
	StatusActive, StatusRepaid, StatusLiquidated,
}

func Statuses() []Status { return append([]Status(nil), allStatuses...) }

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal states accept no further transition.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRepaid || s == StatusLiquidated
}

func CanTransition(from, to Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialStatus is the status a new record of the given kind starts in.
// Deposits have no counterparty approval, so they are active immediately.
func InitialStatus(k Kind) Status {
	if k == KindDeposit {
		return StatusActive
	}
	return StatusRequested
}
