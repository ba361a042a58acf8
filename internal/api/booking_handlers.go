package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/medibook/booking-service/internal/booking"
)

// BookingService is the slice of the booking service the booking endpoints
// need.
type BookingService interface {
	Reserve(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error)
	Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error)
	Complete(ctx context.Context, bookingID, actorID uuid.UUID, doctorNotes string) (*booking.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*booking.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListPatientBookings(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Booking, error)
	ListDoctorBookings(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]booking.Booking, error)
	ListDoctorBookingsByDate(ctx context.Context, actorID uuid.UUID, date time.Time) ([]booking.Booking, error)
	ListBookings(ctx context.Context, status *booking.BookingStatus, limit, offset int) ([]booking.Booking, error)
	ListBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]booking.StatusHistory, error)
}

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}

		var req CreateBookingRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.SlotID == uuid.Nil || req.DoctorID == uuid.Nil || req.ServiceID == uuid.Nil {
			writeError(w, r, http.StatusBadRequest, "missing_fields", "slot_id, doctor_id and service_id are required")
			return
		}

		b, err := svc.Reserve(r.Context(), booking.ReserveRequest{
			PatientID: actor,
			DoctorID:  req.DoctorID,
			ServiceID: req.ServiceID,
			SlotID:    req.SlotID,
			Notes:     req.Notes,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, toBookingResponse(b))
	}
}

func bookingActionHandler(action func(context.Context, uuid.UUID, uuid.UUID, *http.Request) (*booking.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := action(r.Context(), id, actor, r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponse(b))
	}
}

func confirmBookingHandler(svc BookingService) http.HandlerFunc {
	return bookingActionHandler(func(ctx context.Context, id, actor uuid.UUID, _ *http.Request) (*booking.Booking, error) {
		return svc.Confirm(ctx, id, actor)
	})
}

func completeBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req CompleteBookingRequest
		// An empty body means no doctor note; anything else must parse.
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		b, err := svc.Complete(r.Context(), id, actor, req.DoctorNotes)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponse(b))
	}
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req CancelBookingRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		b, err := svc.Cancel(r.Context(), id, actor, req.Reason)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponse(b))
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponse(b))
	}
}

func bookingHistoryHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		entries, err := svc.ListBookingHistory(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toHistoryResponses(entries))
	}
}

func listPatientBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		limit, offset := pageParams(r)

		bookings, err := svc.ListPatientBookings(r.Context(), actor, limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponses(bookings))
	}
}

func listDoctorBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		limit, offset := pageParams(r)

		bookings, err := svc.ListDoctorBookings(r.Context(), actor, limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponses(bookings))
	}
}

func listDoctorBookingsByDateHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(r)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_actor", "X-User-Id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		bookings, err := svc.ListDoctorBookingsByDate(r.Context(), actor, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponses(bookings))
	}
}

func listBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *booking.BookingStatus
		if s := r.URL.Query().Get("status"); s != "" {
			st := booking.BookingStatus(s)
			switch st {
			case booking.StatusPending, booking.StatusConfirmed, booking.StatusCompleted, booking.StatusCanceled:
				status = &st
			default:
				writeError(w, r, http.StatusBadRequest, "invalid_status", "status must be PENDING, CONFIRMED, COMPLETED or CANCELED")
				return
			}
		}
		limit, offset := pageParams(r)

		bookings, err := svc.ListBookings(r.Context(), status, limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toBookingResponses(bookings))
	}
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
