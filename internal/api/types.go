package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-service/internal/booking"
)

const dateLayout = "2006-01-02"

type CreateSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BulkSlotRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type BulkSlotResponse struct {
	Count int `json:"count"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Available bool      `json:"available"`
	Status    string    `json:"status"`
}

type CreateBookingRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	ServiceID uuid.UUID `json:"service_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	Notes     string    `json:"notes"`
}

type CompleteBookingRequest struct {
	DoctorNotes string `json:"doctor_notes"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type BookingResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	DoctorID           uuid.UUID  `json:"doctor_id"`
	ServiceID          uuid.UUID  `json:"service_id"`
	SlotID             uuid.UUID  `json:"slot_id"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	DoctorNotes        *string    `json:"doctor_notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type HistoryEntryResponse struct {
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy uuid.UUID `json:"changed_by"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s *booking.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format(dateLayout),
		StartTime: s.Start.String(),
		EndTime:   s.End.String(),
		Available: s.Available,
		Status:    string(s.Status),
	}
}

func toSlotResponses(slots []booking.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		PatientID:          b.PatientID,
		DoctorID:           b.DoctorID,
		ServiceID:          b.ServiceID,
		SlotID:             b.SlotID,
		Status:             string(b.Status),
		Notes:              b.Notes,
		DoctorNotes:        b.DoctorNotes,
		CancellationReason: b.CancellationReason,
		CancelledBy:        b.CancelledBy,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func toBookingResponses(bookings []booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return out
}

func toHistoryResponses(entries []booking.StatusHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		var old *string
		if h.OldStatus != nil {
			s := string(*h.OldStatus)
			old = &s
		}
		out = append(out, HistoryEntryResponse{
			OldStatus: old,
			NewStatus: string(h.NewStatus),
			ChangedBy: h.ChangedBy,
			Reason:    h.Reason,
			ChangedAt: h.ChangedAt,
		})
	}
	return out
}
