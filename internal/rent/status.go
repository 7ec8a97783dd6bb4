package rent

import "fmt"

// ValidateStatusTransition checks a status change requested by payment recording.
// The generator itself only ever writes pending.
func ValidateStatusTransition(current, target InvoiceStatus) error {
	if current == target {
		return nil
	}
	switch current {
	case StatusPending:
		if target == StatusPaid || target == StatusOverdue {
			return nil
		}
	case StatusOverdue:
		if target == StatusPaid {
			return nil
		}
	case StatusPaid:
		// payment reversal
		if target == StatusPending {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

// ParseStatus validates a raw status value.
func ParseStatus(value string) (InvoiceStatus, error) {
	switch s := InvoiceStatus(value); s {
	case StatusPending, StatusPaid, StatusOverdue:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, value)
}
