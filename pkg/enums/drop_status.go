package enums

import "fmt"

// DropStatus tracks the lifecycle of a timed, limited-quantity sale.
type DropStatus string

const (
	DropStatusScheduled DropStatus = "scheduled"
	DropStatusLive      DropStatus = "live"
	DropStatusSoldOut   DropStatus = "sold_out"
	DropStatusClosed    DropStatus = "closed"
)

var validDropStatuses = []DropStatus{
	DropStatusScheduled,
	DropStatusLive,
	DropStatusSoldOut,
	DropStatusClosed,
}

// String implements fmt.Stringer.
func (s DropStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DropStatus.
func (s DropStatus) IsValid() bool {
	for _, candidate := range validDropStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDropStatus converts raw input into a DropStatus.
func ParseDropStatus(value string) (DropStatus, error) {
	for _, candidate := range validDropStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid drop status %q", value)
}
