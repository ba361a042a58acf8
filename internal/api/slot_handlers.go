package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/medibook/booking-service/internal/booking"
)

// SlotService is the slice of the booking service the slot endpoints need.
type SlotService interface {
	CreateSlot(ctx context.Context, actorID uuid.UUID, date time.Time, start, end booking.TimeOfDay) (*booking.TimeSlot, error)
	ApproveSlot(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error)
	RejectSlot(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error)
	ApproveSlots(ctx context.Context, ids []uuid.UUID) int
	RejectSlots(ctx context.Context, ids []uuid.UUID) int
	DeleteSlot(ctx context.Context, slotID, actorID uuid.UUID) error
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	ListDoctorSlots(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]booking.TimeSlot, error)
	ListSlots(ctx context.Context, status *booking.SlotStatus, from, to *time.Time) ([]booking.TimeSlot, error)
	ListPendingSlots(ctx context.Context) ([]booking.TimeSlot, error)
}

func createSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}

		var req CreateSlotRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := booking.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		end, err := booking.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), actor, date, start, end)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, toSlotResponse(slot))
	}
}

func approveSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := svc.ApproveSlot(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponse(slot))
	}
}

func rejectSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := svc.RejectSlot(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponse(slot))
	}
}

func bulkApproveHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkSlotRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		writeJSON(w, r, http.StatusOK, BulkSlotResponse{Count: svc.ApproveSlots(r.Context(), req.IDs)})
	}
}

func bulkRejectHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkSlotRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		writeJSON(w, r, http.StatusOK, BulkSlotResponse{Count: svc.RejectSlots(r.Context(), req.IDs)})
	}
}

func deleteSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteSlot(r.Context(), id, actor); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listAvailableSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponses(slots))
	}
}

func listDoctorSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListDoctorSlots(r.Context(), actor, from, to)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponses(slots))
	}
}

func listSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *booking.SlotStatus
		if s := r.URL.Query().Get("status"); s != "" {
			st := booking.SlotStatus(s)
			switch st {
			case booking.SlotPending, booking.SlotApproved, booking.SlotRejected:
				status = &st
			default:
				writeError(w, r, http.StatusBadRequest, "invalid_status", "status must be PENDING, APPROVED or REJECTED")
				return
			}
		}

		var from, to *time.Time
		if s := r.URL.Query().Get("from"); s != "" {
			t, err := time.Parse(dateLayout, s)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			from = &t
		}
		if s := r.URL.Query().Get("to"); s != "" {
			t, err := time.Parse(dateLayout, s)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
			to = &t
		}

		slots, err := svc.ListSlots(r.Context(), status, from, to)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponses(slots))
	}
}

func listPendingSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListPendingSlots(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSlotResponses(slots))
	}
}
