package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-service/internal/identity"
	"github.com/medibook/booking-service/internal/lock"
)

var (
	// ErrSlotNotAvailable is the normal loser's outcome under contention:
	// the slot was claimed between listing and reserving.
	ErrSlotNotAvailable = errors.New("time slot is not available")
	// ErrSlotBusy means the slot lock could not be acquired in time; the
	// caller should retry.
	ErrSlotBusy = errors.New("time slot is being booked, retry shortly")
	// ErrSlotNotBookable means the slot has not passed admin approval.
	ErrSlotNotBookable    = errors.New("time slot is not approved for booking")
	ErrSlotDoctorMismatch = errors.New("time slot does not belong to the requested doctor")
	ErrForbidden          = errors.New("actor is not allowed to perform this action")
	ErrInvalidTransition  = errors.New("booking state does not permit this transition")
	ErrDoctorNotFound     = errors.New("no doctor record for actor")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	repo     Repository
	locker   lock.Locker
	doctors  identity.DoctorResolver
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, locker lock.Locker, doctors identity.DoctorResolver, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		doctors:  doctors,
		notifier: notifier,
		log:      log,
	}
}

func slotKey(id uuid.UUID) string {
	return "slot:" + id.String()
}

// mapLockErr folds the two lock layers into one retryable error kind.
func mapLockErr(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) ||
		errors.Is(err, ErrSlotLocked) ||
		errors.Is(err, ErrTxConflict) {
		return ErrSlotBusy
	}
	return err
}

type ReserveRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	SlotID    uuid.UUID
	Notes     string
}

// Reserve atomically claims a slot and creates its booking. The per-slot
// lock plus the serializable transaction guarantee that of N concurrent
// attempts on one slot exactly one succeeds; the rest see
// ErrSlotNotAvailable or ErrSlotBusy.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	// Cheap pre-checks before taking the lock. Availability is checked
	// again under the lock; this read only rejects dead requests early.
	slot, err := s.repo.GetSlotByID(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.Status != SlotApproved {
		return nil, ErrSlotNotBookable
	}
	if !slot.Available {
		return nil, ErrSlotNotAvailable
	}

	var created *Booking

	err = s.locker.WithLock(ctx, slotKey(req.SlotID), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(r Repository) error {
			slot, err := r.GetSlotForUpdate(lockCtx, req.SlotID)
			if err != nil {
				return err
			}

			// Re-check under the row lock: availability may have flipped
			// between listing and claiming.
			if !slot.Available {
				return ErrSlotNotAvailable
			}
			if slot.DoctorID != req.DoctorID {
				return ErrSlotDoctorMismatch
			}
			if existing, err := r.GetActiveBookingForSlot(lockCtx, req.SlotID); err != nil {
				if !errors.Is(err, ErrBookingNotFound) {
					return fmt.Errorf("check active booking: %w", err)
				}
			} else if existing != nil {
				return ErrSlotNotAvailable
			}

			if err := r.SetSlotAvailability(lockCtx, slot.ID, false); err != nil {
				return err
			}

			b := &Booking{
				ID:        uuid.New(),
				PatientID: req.PatientID,
				DoctorID:  req.DoctorID,
				ServiceID: req.ServiceID,
				SlotID:    slot.ID,
				Status:    StatusPending,
				Notes:     req.Notes,
			}
			if err := r.CreateBooking(lockCtx, b); err != nil {
				return err
			}

			if err := r.AppendHistory(lockCtx, &StatusHistory{
				BookingID: b.ID,
				OldStatus: nil,
				NewStatus: StatusPending,
				ChangedBy: req.PatientID,
				Reason:    "booking created",
			}); err != nil {
				return err
			}

			created = b
			return nil
		})
	})
	if err != nil {
		return nil, mapLockErr(err)
	}

	s.log.Info().
		Stringer("booking_id", created.ID).
		Stringer("slot_id", created.SlotID).
		Stringer("patient_id", created.PatientID).
		Msg("booking created")
	s.notifier.BookingCreated(ctx, created)

	return created, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Only the owning doctor may
// confirm; the permission check runs before the state check so state never
// leaks to unauthorized callers.
func (s *Service) Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if err := s.requireOwningDoctor(ctx, b, actorID); err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	if err := s.transition(ctx, b, StatusConfirmed, actorID, "doctor confirmed"); err != nil {
		return nil, mapLockErr(err)
	}

	s.log.Info().Stringer("booking_id", b.ID).Stringer("actor_id", actorID).Msg("booking confirmed")
	s.notifier.BookingConfirmed(ctx, b)
	return b, nil
}

// Complete moves a CONFIRMED booking to COMPLETED, recording the doctor's
// note.
func (s *Service) Complete(ctx context.Context, bookingID, actorID uuid.UUID, doctorNotes string) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if err := s.requireOwningDoctor(ctx, b, actorID); err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	if doctorNotes != "" {
		b.DoctorNotes = &doctorNotes
	}
	if err := s.transition(ctx, b, StatusCompleted, actorID, "visit completed"); err != nil {
		return nil, mapLockErr(err)
	}

	s.log.Info().Stringer("booking_id", b.ID).Stringer("actor_id", actorID).Msg("booking completed")
	s.notifier.BookingCompleted(ctx, b)
	return b, nil
}

// Cancel releases the booking's slot and moves the booking to CANCELED,
// in one atomic unit under the same per-slot lock that Reserve takes.
// Either the owning patient or the owning doctor may cancel.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	isPatient := b.PatientID == actorID
	doctorID, isDoctorActor, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	isDoctor := isDoctorActor && b.DoctorID == doctorID
	if !isPatient && !isDoctor {
		return nil, ErrForbidden
	}

	if b.Status == StatusCompleted || b.Status == StatusCanceled {
		return nil, ErrInvalidTransition
	}

	historyReason := "doctor cancelled: " + reason
	if isPatient {
		historyReason = "patient cancelled: " + reason
	}

	var cancelled *Booking

	err = s.locker.WithLock(ctx, slotKey(b.SlotID), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(r Repository) error {
			if _, err := r.GetSlotForUpdate(lockCtx, b.SlotID); err != nil {
				return err
			}

			b, err := r.GetBookingByID(lockCtx, bookingID)
			if err != nil {
				return err
			}
			// State may have moved while we waited on the lock.
			if b.Status == StatusCompleted || b.Status == StatusCanceled {
				return ErrInvalidTransition
			}

			if err := r.SetSlotAvailability(lockCtx, b.SlotID, true); err != nil {
				return err
			}

			old := b.Status
			b.Status = StatusCanceled
			b.CancellationReason = &reason
			b.CancelledBy = &actorID
			if err := r.UpdateBooking(lockCtx, b); err != nil {
				return err
			}

			if err := r.AppendHistory(lockCtx, &StatusHistory{
				BookingID: b.ID,
				OldStatus: &old,
				NewStatus: StatusCanceled,
				ChangedBy: actorID,
				Reason:    historyReason,
			}); err != nil {
				return err
			}

			cancelled = b
			return nil
		})
	})
	if err != nil {
		return nil, mapLockErr(err)
	}

	s.log.Info().
		Stringer("booking_id", cancelled.ID).
		Stringer("slot_id", cancelled.SlotID).
		Stringer("actor_id", actorID).
		Msg("booking cancelled, slot released")
	s.notifier.BookingCancelled(ctx, cancelled, reason)

	return cancelled, nil
}

// transition persists a status change plus its history row in one
// transaction. The caller's state check ran on a snapshot, so the booking
// is re-read and re-verified under the transaction: a cancellation that
// committed in between must not be overwritten. Slot availability is
// untouched; Reserve and Cancel own that.
func (s *Service) transition(ctx context.Context, b *Booking, to BookingStatus, actorID uuid.UUID, reason string) error {
	expected := b.Status
	return s.repo.InTx(ctx, func(r Repository) error {
		cur, err := r.GetBookingByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if cur.Status != expected {
			return ErrInvalidTransition
		}

		cur.Status = to
		cur.DoctorNotes = b.DoctorNotes
		if err := r.UpdateBooking(ctx, cur); err != nil {
			return err
		}

		if err := r.AppendHistory(ctx, &StatusHistory{
			BookingID: cur.ID,
			OldStatus: &expected,
			NewStatus: to,
			ChangedBy: actorID,
			Reason:    reason,
		}); err != nil {
			return err
		}

		*b = *cur
		return nil
	})
}

func (s *Service) requireOwningDoctor(ctx context.Context, b *Booking, actorID uuid.UUID) error {
	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok || b.DoctorID != doctorID {
		return ErrForbidden
	}
	return nil
}

// Reads

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

func (s *Service) ListPatientBookings(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListBookingsByPatient(ctx, patientID, limit, offset)
}

// ListDoctorBookings lists the bookings owned by the doctor behind actorID,
// newest first. A non-doctor actor gets an empty list, not an error.
func (s *Service) ListDoctorBookings(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]Booking, error) {
	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListBookingsByDoctor(ctx, doctorID, limit, offset)
}

// ListDoctorBookingsByDate lists the bookings on the doctor's calendar for
// one day, in slot order. A non-doctor actor gets an empty list.
func (s *Service) ListDoctorBookingsByDate(ctx context.Context, actorID uuid.UUID, date time.Time) ([]Booking, error) {
	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return s.repo.ListBookingsByDoctorAndDate(ctx, doctorID, date)
}

// ListBookings is the admin view across all bookings with an optional
// status filter, newest first.
func (s *Service) ListBookings(ctx context.Context, status *BookingStatus, limit, offset int) ([]Booking, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListBookings(ctx, status, limit, offset)
}

func (s *Service) ListBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]StatusHistory, error) {
	if _, err := s.repo.GetBookingByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, bookingID)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
