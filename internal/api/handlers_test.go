package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-service/internal/booking"
)

// stubSlots and stubBookings let each test pin just the method it exercises.

type stubSlots struct {
	createSlot  func(ctx context.Context, actorID uuid.UUID, date time.Time, start, end booking.TimeOfDay) (*booking.TimeSlot, error)
	approveSlot func(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error)
	rejectSlot  func(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error)
	bulkCount   int
	deleteSlot  func(ctx context.Context, slotID, actorID uuid.UUID) error
	slots       []booking.TimeSlot
	listErr     error
}

func (s *stubSlots) CreateSlot(ctx context.Context, actorID uuid.UUID, date time.Time, start, end booking.TimeOfDay) (*booking.TimeSlot, error) {
	return s.createSlot(ctx, actorID, date, start, end)
}

func (s *stubSlots) ApproveSlot(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error) {
	return s.approveSlot(ctx, slotID)
}

func (s *stubSlots) RejectSlot(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error) {
	return s.rejectSlot(ctx, slotID)
}

func (s *stubSlots) ApproveSlots(ctx context.Context, ids []uuid.UUID) int { return s.bulkCount }
func (s *stubSlots) RejectSlots(ctx context.Context, ids []uuid.UUID) int  { return s.bulkCount }

func (s *stubSlots) DeleteSlot(ctx context.Context, slotID, actorID uuid.UUID) error {
	return s.deleteSlot(ctx, slotID, actorID)
}

func (s *stubSlots) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]booking.TimeSlot, error) {
	return s.slots, s.listErr
}

func (s *stubSlots) ListDoctorSlots(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]booking.TimeSlot, error) {
	return s.slots, s.listErr
}

func (s *stubSlots) ListSlots(ctx context.Context, status *booking.SlotStatus, from, to *time.Time) ([]booking.TimeSlot, error) {
	return s.slots, s.listErr
}

func (s *stubSlots) ListPendingSlots(ctx context.Context) ([]booking.TimeSlot, error) {
	return s.slots, s.listErr
}

type stubBookings struct {
	reserve  func(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error)
	confirm  func(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error)
	complete func(ctx context.Context, bookingID, actorID uuid.UUID, doctorNotes string) (*booking.Booking, error)
	cancel   func(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*booking.Booking, error)
	get      func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	bookings []booking.Booking
	history  []booking.StatusHistory
	listErr  error
}

func (s *stubBookings) Reserve(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error) {
	return s.reserve(ctx, req)
}

func (s *stubBookings) Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error) {
	return s.confirm(ctx, bookingID, actorID)
}

func (s *stubBookings) Complete(ctx context.Context, bookingID, actorID uuid.UUID, doctorNotes string) (*booking.Booking, error) {
	return s.complete(ctx, bookingID, actorID, doctorNotes)
}

func (s *stubBookings) Cancel(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*booking.Booking, error) {
	return s.cancel(ctx, bookingID, actorID, reason)
}

func (s *stubBookings) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return s.get(ctx, id)
}

func (s *stubBookings) ListPatientBookings(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Booking, error) {
	return s.bookings, s.listErr
}

func (s *stubBookings) ListDoctorBookings(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]booking.Booking, error) {
	return s.bookings, s.listErr
}

func (s *stubBookings) ListDoctorBookingsByDate(ctx context.Context, actorID uuid.UUID, date time.Time) ([]booking.Booking, error) {
	return s.bookings, s.listErr
}

func (s *stubBookings) ListBookings(ctx context.Context, status *booking.BookingStatus, limit, offset int) ([]booking.Booking, error) {
	return s.bookings, s.listErr
}

func (s *stubBookings) ListBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]booking.StatusHistory, error) {
	return s.history, s.listErr
}

func newTestRouter(slots SlotService, bookings BookingService) http.Handler {
	return NewRouter(RouterConfig{
		Slots:    slots,
		Bookings: bookings,
		Env:      "test",
		Version:  "test",
		Logger:   zerolog.Nop(),
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != "" {
		req.Header.Set("X-User-Id", actor)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return e
}

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		ServiceID: uuid.New(),
		SlotID:    uuid.New(),
		Status:    booking.StatusPending,
	}
}

func sampleSlot() *booking.TimeSlot {
	return &booking.TimeSlot{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		Date:      time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Start:     booking.NewTimeOfDay(9, 0),
		End:       booking.NewTimeOfDay(9, 30),
		Available: true,
		Status:    booking.SlotApproved,
	}
}

func TestCreateBooking(t *testing.T) {
	created := sampleBooking()
	bookings := &stubBookings{
		reserve: func(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error) {
			return created, nil
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	body := `{"doctor_id":"` + created.DoctorID.String() + `","service_id":"` + created.ServiceID.String() + `","slot_id":"` + created.SlotID.String() + `"}`
	rec := doRequest(t, h, "POST", "/bookings", uuid.NewString(), body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var resp BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != created.ID {
		t.Fatal("response does not carry the created booking")
	}
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{})

	// Missing actor header.
	rec := doRequest(t, h, "POST", "/bookings", "", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no actor: status = %d, want 400", rec.Code)
	}

	// Malformed JSON.
	rec = doRequest(t, h, "POST", "/bookings", uuid.NewString(), `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d, want 400", rec.Code)
	}

	// Missing required ids.
	rec = doRequest(t, h, "POST", "/bookings", uuid.NewString(), `{"notes":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ids: status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "missing_fields" {
		t.Fatalf("error code = %q, want missing_fields", e.Error)
	}
}

func TestCreateBookingConflictCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"slot taken", booking.ErrSlotNotAvailable, http.StatusConflict, "slot_not_available"},
		{"slot busy", booking.ErrSlotBusy, http.StatusConflict, "slot_busy"},
		{"not approved", booking.ErrSlotNotBookable, http.StatusConflict, "slot_not_bookable"},
		{"unknown slot", booking.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
		{"wrong doctor", booking.ErrSlotDoctorMismatch, http.StatusBadRequest, "slot_doctor_mismatch"},
	}

	slotID := uuid.NewString()
	body := `{"doctor_id":"` + uuid.NewString() + `","service_id":"` + uuid.NewString() + `","slot_id":"` + slotID + `"}`

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bookings := &stubBookings{
				reserve: func(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error) {
					return nil, tc.err
				},
			}
			h := newTestRouter(&stubSlots{}, bookings)

			rec := doRequest(t, h, "POST", "/bookings", uuid.NewString(), body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if e := decodeError(t, rec); e.Error != tc.wantBody {
				t.Fatalf("error code = %q, want %q", e.Error, tc.wantBody)
			}
		})
	}
}

func TestConfirmBooking(t *testing.T) {
	b := sampleBooking()
	b.Status = booking.StatusConfirmed
	bookings := &stubBookings{
		confirm: func(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error) {
			return b, nil
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/confirm", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// Forbidden and invalid-state map to 403 and 400.
	bookings.confirm = func(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error) {
		return nil, booking.ErrForbidden
	}
	if rec := doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/confirm", uuid.NewString(), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("forbidden: status = %d, want 403", rec.Code)
	}

	bookings.confirm = func(ctx context.Context, bookingID, actorID uuid.UUID) (*booking.Booking, error) {
		return nil, booking.ErrInvalidTransition
	}
	rec = doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/confirm", uuid.NewString(), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid transition: status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "invalid_state" {
		t.Fatalf("error code = %q, want invalid_state", e.Error)
	}
}

func TestCompleteBookingPassesNotes(t *testing.T) {
	var gotNotes string
	b := sampleBooking()
	bookings := &stubBookings{
		complete: func(ctx context.Context, bookingID, actorID uuid.UUID, doctorNotes string) (*booking.Booking, error) {
			gotNotes = doctorNotes
			return b, nil
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/complete", uuid.NewString(), `{"doctor_notes":"rest"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotNotes != "rest" {
		t.Fatalf("doctor notes = %q, want %q", gotNotes, "rest")
	}

	// Empty body is fine and means no note.
	rec = doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/complete", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body: status = %d, want 200", rec.Code)
	}
	if gotNotes != "" {
		t.Fatalf("doctor notes = %q, want empty", gotNotes)
	}

	// Malformed JSON is not the same as no body.
	rec = doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/complete", uuid.NewString(), `{"doctor_notes":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "invalid_request_body" {
		t.Fatalf("error code = %q, want invalid_request_body", e.Error)
	}
}

func TestCancelBookingRequiresBody(t *testing.T) {
	b := sampleBooking()
	bookings := &stubBookings{
		cancel: func(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*booking.Booking, error) {
			return b, nil
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/cancel", uuid.NewString(), `{"reason":"sick"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, "PUT", "/bookings/"+b.ID.String()+"/cancel", uuid.NewString(), `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: status = %d, want 400", rec.Code)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	bookings := &stubBookings{
		get: func(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
			return nil, booking.ErrBookingNotFound
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "GET", "/bookings/"+uuid.NewString(), uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	// Bad path ids fail before reaching the service.
	rec = doRequest(t, h, "GET", "/bookings/not-a-uuid", uuid.NewString(), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestCreateSlot(t *testing.T) {
	slot := sampleSlot()
	slots := &stubSlots{
		createSlot: func(ctx context.Context, actorID uuid.UUID, date time.Time, start, end booking.TimeOfDay) (*booking.TimeSlot, error) {
			return slot, nil
		},
	}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "POST", "/slots", uuid.NewString(), `{"date":"2026-09-15","start_time":"09:00","end_time":"09:30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var resp SlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StartTime != "09:00" || resp.EndTime != "09:30" {
		t.Fatalf("times = %s-%s, want 09:00-09:30", resp.StartTime, resp.EndTime)
	}

	// Bad date and bad times are rejected before the service runs.
	rec = doRequest(t, h, "POST", "/slots", uuid.NewString(), `{"date":"15/09/2026","start_time":"09:00","end_time":"09:30"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}
	rec = doRequest(t, h, "POST", "/slots", uuid.NewString(), `{"date":"2026-09-15","start_time":"late","end_time":"09:30"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time: status = %d, want 400", rec.Code)
	}
}

func TestCreateSlotValidationMapsTo400(t *testing.T) {
	slots := &stubSlots{
		createSlot: func(ctx context.Context, actorID uuid.UUID, date time.Time, start, end booking.TimeOfDay) (*booking.TimeSlot, error) {
			return nil, booking.ErrSlotOverlap
		},
	}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "POST", "/slots", uuid.NewString(), `{"date":"2026-09-15","start_time":"09:00","end_time":"09:30"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "invalid_slot" {
		t.Fatalf("error code = %q, want invalid_slot", e.Error)
	}
}

func TestApproveRejectSlot(t *testing.T) {
	slot := sampleSlot()
	slots := &stubSlots{
		approveSlot: func(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error) {
			return slot, nil
		},
		rejectSlot: func(ctx context.Context, slotID uuid.UUID) (*booking.TimeSlot, error) {
			return nil, booking.ErrInvalidSlotState
		},
	}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "PUT", "/slots/"+slot.ID.String()+"/approve", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, "PUT", "/slots/"+slot.ID.String()+"/reject", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reject: status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "invalid_state" {
		t.Fatalf("error code = %q, want invalid_state", e.Error)
	}
}

func TestBulkApprove(t *testing.T) {
	slots := &stubSlots{bulkCount: 3}
	h := newTestRouter(slots, &stubBookings{})

	body := `{"ids":["` + uuid.NewString() + `","` + uuid.NewString() + `"]}`
	rec := doRequest(t, h, "POST", "/slots/bulk-approve", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp BulkSlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Count)
	}
}

func TestDeleteSlot(t *testing.T) {
	slots := &stubSlots{
		deleteSlot: func(ctx context.Context, slotID, actorID uuid.UUID) error { return nil },
	}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "DELETE", "/slots/"+uuid.NewString(), uuid.NewString(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	slots.deleteSlot = func(ctx context.Context, slotID, actorID uuid.UUID) error {
		return booking.ErrSlotHasBooking
	}
	rec = doRequest(t, h, "DELETE", "/slots/"+uuid.NewString(), uuid.NewString(), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("booked slot: status = %d, want 409", rec.Code)
	}
}

func TestListSlotsStatusFilter(t *testing.T) {
	slots := &stubSlots{slots: []booking.TimeSlot{*sampleSlot()}}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "GET", "/slots/admin?status=PENDING", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/slots/admin?status=bogus", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus filter: status = %d, want 400", rec.Code)
	}
}

func TestListAvailableSlotsQueryValidation(t *testing.T) {
	slots := &stubSlots{slots: []booking.TimeSlot{*sampleSlot()}}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, "GET", "/slots/available?doctor_id="+uuid.NewString()+"&date=2026-09-15", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, "GET", "/slots/available?doctor_id=nope&date=2026-09-15", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad doctor_id: status = %d, want 400", rec.Code)
	}
}

func TestListBookingsStatusFilter(t *testing.T) {
	b := sampleBooking()
	bookings := &stubBookings{bookings: []booking.Booking{*b}}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "GET", "/bookings/admin?status=CANCELED", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp []BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != b.ID {
		t.Fatalf("resp = %+v", resp)
	}

	rec = doRequest(t, h, "GET", "/bookings/admin?status=bogus", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus filter: status = %d, want 400", rec.Code)
	}
}

func TestListDoctorBookingsByDateRoute(t *testing.T) {
	bookings := &stubBookings{bookings: []booking.Booking{*sampleBooking()}}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "GET", "/bookings/doctor/date?date=2026-09-15", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, "GET", "/bookings/doctor/date?date=nope", uuid.NewString(), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestBookingHistoryRoute(t *testing.T) {
	old := booking.StatusPending
	bookings := &stubBookings{
		history: []booking.StatusHistory{
			{BookingID: uuid.New(), OldStatus: &old, NewStatus: booking.StatusConfirmed, ChangedBy: uuid.New(), Reason: "doctor confirmed"},
		},
	}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, "GET", "/bookings/"+uuid.NewString()+"/history", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []HistoryEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].NewStatus != "CONFIRMED" {
		t.Fatalf("entries = %+v", entries)
	}
}
