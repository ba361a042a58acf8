package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotPending  SlotStatus = "PENDING"
	SlotApproved SlotStatus = "APPROVED"
	SlotRejected SlotStatus = "REJECTED"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCanceled  BookingStatus = "CANCELED"
)

// TimeOfDay is minutes since midnight. Slot times never carry a date or a
// zone, so a plain minute count keeps comparisons and storage trivial.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "15:04" and "15:04:05" (seconds are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layout := "15:04"
	if len(s) == len("15:04:05") {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type TimeSlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	End       TimeOfDay
	Available bool
	Status    SlotStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Booking struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	ServiceID          uuid.UUID
	SlotID             uuid.UUID
	Status             BookingStatus
	Notes              string
	DoctorNotes        *string
	CancellationReason *string
	CancelledBy        *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusHistory is the append-only audit record of one booking transition.
// OldStatus is nil only for the row written when the booking is created.
type StatusHistory struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	OldStatus *BookingStatus
	NewStatus BookingStatus
	ChangedBy uuid.UUID
	Reason    string
	ChangedAt time.Time
}
