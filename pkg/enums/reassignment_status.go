package enums

import "fmt"

// ReassignmentStatus tracks a leadership handover request.
type ReassignmentStatus string

const (
	ReassignmentStatusPending   ReassignmentStatus = "pending"
	ReassignmentStatusAccepted  ReassignmentStatus = "accepted"
	ReassignmentStatusDeclined  ReassignmentStatus = "declined"
	ReassignmentStatusCancelled ReassignmentStatus = "cancelled"
)

var validReassignmentStatuses = []ReassignmentStatus{
	ReassignmentStatusPending,
	ReassignmentStatusAccepted,
	ReassignmentStatusDeclined,
	ReassignmentStatusCancelled,
}

// String implements fmt.Stringer.
func (s ReassignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReassignmentStatus.
func (s ReassignmentStatus) IsValid() bool {
	for _, candidate := range validReassignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the request can no longer be resolved.
func (s ReassignmentStatus) IsTerminal() bool {
	return s != ReassignmentStatusPending
}

// ParseReassignmentStatus converts raw input into a ReassignmentStatus.
func ParseReassignmentStatus(value string) (ReassignmentStatus, error) {
	for _, candidate := range validReassignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reassignment status %q", value)
}
