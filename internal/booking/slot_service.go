package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSlotState rejects an approval transition out of a terminal
	// approval status.
	ErrInvalidSlotState = errors.New("slot approval state does not permit this transition")
	// ErrSlotHasBooking blocks deleting a slot that an active booking holds.
	ErrSlotHasBooking = errors.New("slot currently holds an active booking")
)

// CreateSlot validates and persists a new slot owned by the doctor behind
// actorID. New slots start PENDING and available; they become visible to
// patients only once approved.
func (s *Service) CreateSlot(ctx context.Context, actorID uuid.UUID, date time.Time, start, end TimeOfDay) (*TimeSlot, error) {
	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	existing, err := s.repo.ListSlotsByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list existing slots: %w", err)
	}

	slot := &TimeSlot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Date:      date,
		Start:     start,
		End:       end,
		Available: true,
		Status:    SlotPending,
	}
	if err := ValidateSlot(slot, existing); err != nil {
		return nil, err
	}

	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.log.Info().
		Stringer("slot_id", slot.ID).
		Stringer("doctor_id", doctorID).
		Str("date", date.Format("2006-01-02")).
		Msg("slot created, pending approval")
	s.notifier.SlotPendingCreated(ctx, slot)

	return slot, nil
}

// ApproveSlot moves a PENDING slot to APPROVED. Approving an already
// APPROVED slot is a no-op success so admin retries stay cheap; any other
// state fails with ErrInvalidSlotState.
func (s *Service) ApproveSlot(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	switch slot.Status {
	case SlotApproved:
		return slot, nil
	case SlotPending:
	default:
		return nil, ErrInvalidSlotState
	}

	updated, err := s.repo.SetSlotStatus(ctx, slotID, SlotApproved)
	if err != nil {
		return nil, fmt.Errorf("approve slot: %w", err)
	}

	s.log.Info().Stringer("slot_id", slotID).Msg("slot approved")
	s.notifier.SlotApproved(ctx, updated)
	return updated, nil
}

// RejectSlot moves a PENDING slot to REJECTED. Unlike approval it is
// strict: rejecting a non-PENDING slot always fails.
func (s *Service) RejectSlot(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotPending {
		return nil, ErrInvalidSlotState
	}

	updated, err := s.repo.SetSlotStatus(ctx, slotID, SlotRejected)
	if err != nil {
		return nil, fmt.Errorf("reject slot: %w", err)
	}

	s.log.Info().Stringer("slot_id", slotID).Msg("slot rejected")
	s.notifier.SlotRejected(ctx, updated)
	return updated, nil
}

// ApproveSlots approves each id independently, best effort. Missing ids
// and slots not in PENDING are skipped; the return value counts slots
// actually transitioned.
func (s *Service) ApproveSlots(ctx context.Context, ids []uuid.UUID) int {
	return s.bulkTransition(ctx, ids, SlotApproved)
}

// RejectSlots is the bulk counterpart of RejectSlot, same skip semantics
// as ApproveSlots.
func (s *Service) RejectSlots(ctx context.Context, ids []uuid.UUID) int {
	return s.bulkTransition(ctx, ids, SlotRejected)
}

func (s *Service) bulkTransition(ctx context.Context, ids []uuid.UUID, to SlotStatus) int {
	count := 0
	for _, id := range ids {
		slot, err := s.repo.GetSlotByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Stringer("slot_id", id).Msg("bulk transition: skipping slot")
			continue
		}
		if slot.Status != SlotPending {
			continue
		}

		updated, err := s.repo.SetSlotStatus(ctx, id, to)
		if err != nil {
			s.log.Warn().Err(err).Stringer("slot_id", id).Msg("bulk transition: update failed")
			continue
		}
		count++

		switch to {
		case SlotApproved:
			s.notifier.SlotApproved(ctx, updated)
		case SlotRejected:
			s.notifier.SlotRejected(ctx, updated)
		}
	}

	s.log.Info().Int("count", count).Str("status", string(to)).Msg("bulk slot transition done")
	return count
}

// DeleteSlot removes an unclaimed slot. Only the owning doctor may delete,
// and never while a booking holds the slot.
func (s *Service) DeleteSlot(ctx context.Context, slotID, actorID uuid.UUID) error {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}

	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok || slot.DoctorID != doctorID {
		return ErrForbidden
	}

	if !slot.Available {
		return ErrSlotHasBooking
	}

	if err := s.repo.DeleteSlot(ctx, slotID); err != nil {
		return err
	}

	s.log.Info().Stringer("slot_id", slotID).Stringer("doctor_id", doctorID).Msg("slot deleted")
	return nil
}

// ListAvailableSlots returns what a patient may book: approved, unclaimed
// slots of one doctor on one date, ordered by start time.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	return s.repo.ListApprovedAvailableSlots(ctx, doctorID, date)
}

// ListDoctorSlots returns the calendar of the doctor behind actorID over a
// date range, regardless of approval status. A non-doctor actor gets an
// empty list.
func (s *Service) ListDoctorSlots(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	doctorID, ok, err := s.doctors.DoctorID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return s.repo.ListSlotsByDoctorBetween(ctx, doctorID, from, to)
}

// ListSlots is the admin view with optional status and date range filters,
// newest date first.
func (s *Service) ListSlots(ctx context.Context, status *SlotStatus, from, to *time.Time) ([]TimeSlot, error) {
	return s.repo.ListSlots(ctx, status, from, to)
}

// ListPendingSlots is the admin review queue.
func (s *Service) ListPendingSlots(ctx context.Context) ([]TimeSlot, error) {
	status := SlotPending
	return s.repo.ListSlots(ctx, &status, nil, nil)
}
