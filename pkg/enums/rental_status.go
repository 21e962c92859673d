package enums

import "fmt"

// RentalStatus tracks a loan through its lifecycle. A rental is "active" from
// checkout, becomes "overdue" once its due date passes, and lands on
// "returned" as its terminal state.
type RentalStatus string

const (
	RentalStatusActive   RentalStatus = "active"
	RentalStatusOverdue  RentalStatus = "overdue"
	RentalStatusReturned RentalStatus = "returned"
)

var validRentalStatuses = []RentalStatus{
	RentalStatusActive,
	RentalStatusOverdue,
	RentalStatusReturned,
}

// String implements fmt.Stringer.
func (r RentalStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RentalStatus.
func (r RentalStatus) IsValid() bool {
	for _, candidate := range validRentalStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsOpen reports whether the rental still holds a copy of the book.
func (r RentalStatus) IsOpen() bool {
	return r == RentalStatusActive || r == RentalStatusOverdue
}

// ParseRentalStatus converts raw input into a RentalStatus.
func ParseRentalStatus(value string) (RentalStatus, error) {
	for _, candidate := range validRentalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental status %q", value)
}
