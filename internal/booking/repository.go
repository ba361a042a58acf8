package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound    = errors.New("time slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSlotLocked means another transaction holds the slot row lock.
	ErrSlotLocked = errors.New("time slot row is locked")
	// ErrTxConflict means the transaction lost a serialization conflict
	// and can be retried.
	ErrTxConflict = errors.New("transaction serialization conflict")
)

// Repository contains all DB interactions needed by the services.
type Repository interface {
	// InTx runs fn inside one serializable transaction. The Repository
	// handed to fn routes every call through that transaction; any error
	// from fn rolls the whole unit back.
	InTx(ctx context.Context, fn func(Repository) error) error

	// Slots
	CreateSlot(ctx context.Context, slot *TimeSlot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// GetSlotForUpdate takes the exclusive row lock without waiting;
	// returns ErrSlotLocked when another unit holds it.
	GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) error
	SetSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*TimeSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error)
	ListApprovedAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error)
	ListSlotsByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error)
	ListSlots(ctx context.Context, status *SlotStatus, from, to *time.Time) ([]TimeSlot, error)

	// Bookings
	CreateBooking(ctx context.Context, b *Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) error
	// GetActiveBookingForSlot is the derived slot -> active booking index:
	// at most one PENDING or CONFIRMED booking may reference a slot.
	GetActiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*Booking, error)
	ListBookingsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error)
	ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Booking, error)
	ListBookingsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error)
	ListBookings(ctx context.Context, status *BookingStatus, limit, offset int) ([]Booking, error)

	// Status history
	AppendHistory(ctx context.Context, h *StatusHistory) error
	ListHistory(ctx context.Context, bookingID uuid.UUID) ([]StatusHistory, error)
}
