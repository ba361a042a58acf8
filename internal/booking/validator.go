package booking

import "errors"

// Working-day bounds for bookable slots.
const (
	DayStart = TimeOfDay(7 * 60)  // 07:00
	DayEnd   = TimeOfDay(17 * 60) // 17:00
)

var (
	ErrSlotOutsideHours     = errors.New("slot must be within 07:00 and 17:00")
	ErrSlotEndNotAfterStart = errors.New("slot end must be after start")
	ErrSlotOverlap          = errors.New("slot overlaps an existing slot")
)

// ValidateSlot checks a candidate slot against the shape rules and against
// the existing slots for the same doctor and date. Intervals are half-open,
// so back-to-back slots do not conflict.
func ValidateSlot(candidate *TimeSlot, existing []TimeSlot) error {
	if candidate.Start < DayStart || candidate.End > DayEnd {
		return ErrSlotOutsideHours
	}
	if candidate.End <= candidate.Start {
		return ErrSlotEndNotAfterStart
	}
	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if candidate.Start < other.End && candidate.End > other.Start {
			return ErrSlotOverlap
		}
	}
	return nil
}

// IsValidationError reports whether err is one of the slot shape rules,
// as opposed to a storage or state error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrSlotOutsideHours) ||
		errors.Is(err, ErrSlotEndNotAfterStart) ||
		errors.Is(err, ErrSlotOverlap)
}
