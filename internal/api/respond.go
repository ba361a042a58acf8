package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/medibook/booking-service/internal/booking"
)

// X-User-Id carries the already-authenticated actor identity; the gateway
// in front of this service sets it.
const actorHeader = "X-User-Id"

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, details string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code, Details: details})
}

func actorID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(actorHeader))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// writeDomainError maps the domain error taxonomy onto HTTP. Conflicts
// carry distinct codes so clients can tell "someone else just booked this"
// (pick another slot) from "retry the same request".
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, r, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, r, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, r, http.StatusNotFound, "doctor_not_found", err.Error())
	case booking.IsValidationError(err):
		writeError(w, r, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, booking.ErrSlotNotAvailable):
		writeError(w, r, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, booking.ErrSlotBusy):
		writeError(w, r, http.StatusConflict, "slot_busy", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrSlotNotBookable):
		writeError(w, r, http.StatusConflict, "slot_not_bookable", err.Error())
	case errors.Is(err, booking.ErrSlotHasBooking):
		writeError(w, r, http.StatusConflict, "slot_has_booking", err.Error())
	case errors.Is(err, booking.ErrSlotDoctorMismatch):
		writeError(w, r, http.StatusBadRequest, "slot_doctor_mismatch", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrInvalidSlotState):
		writeError(w, r, http.StatusBadRequest, "invalid_state", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
