package enums

import (
	"fmt"
	"time"
)

// SubscriptionFrequency is the delivery cadence a customer picked at signup.
type SubscriptionFrequency string

const (
	FrequencyWeekly   SubscriptionFrequency = "weekly"
	FrequencyBiweekly SubscriptionFrequency = "biweekly"
	FrequencyMonthly  SubscriptionFrequency = "monthly"
)

var validFrequencies = []SubscriptionFrequency{
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyMonthly,
}

// String implements fmt.Stringer.
func (f SubscriptionFrequency) String() string {
	return string(f)
}

// IsValid reports whether the value is a known SubscriptionFrequency.
func (f SubscriptionFrequency) IsValid() bool {
	for _, candidate := range validFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// NextDelivery returns the delivery date one cadence interval after from.
// Monthly uses calendar-month arithmetic, not a fixed 30 days.
func (f SubscriptionFrequency) NextDelivery(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// ParseSubscriptionFrequency converts raw input into a SubscriptionFrequency.
func ParseSubscriptionFrequency(value string) (SubscriptionFrequency, error) {
	for _, candidate := range validFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription frequency %q", value)
}
