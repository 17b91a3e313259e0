package enums

import "fmt"

// IntentStatus tracks the lifecycle of a payment intent. complete and failed
// are terminal; an intent resolves exactly once.
type IntentStatus string

const (
	IntentStatusPending  IntentStatus = "pending"
	IntentStatusComplete IntentStatus = "complete"
	IntentStatusFailed   IntentStatus = "failed"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusPending,
	IntentStatusComplete,
	IntentStatusFailed,
}

// String implements fmt.Stringer.
func (i IntentStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntentStatus.
func (i IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status allows no further transitions.
func (i IntentStatus) IsTerminal() bool {
	return i == IntentStatusComplete || i == IntentStatusFailed
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
