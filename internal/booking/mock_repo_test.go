package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-service/internal/identity"
	"github.com/medibook/booking-service/internal/lock"
)

// memRepo is an in-memory Repository for service tests. InTx serializes
// units of work with a second mutex, which models the row lock closely
// enough for the contention tests: the failure paths under test never
// write before failing, so rollback is not modeled.
type memRepo struct {
	mu   sync.Mutex
	txMu sync.Mutex

	slots    map[uuid.UUID]*TimeSlot
	bookings map[uuid.UUID]*Booking
	history  []StatusHistory
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots:    make(map[uuid.UUID]*TimeSlot),
		bookings: make(map[uuid.UUID]*Booking),
	}
}

func (m *memRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memRepo) CreateSlot(ctx context.Context, slot *TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return m.GetSlotByID(ctx, id)
}

func (m *memRepo) SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.Available = available
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memRepo) SetSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Status = status
	s.Version++
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memRepo) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	// Bookings reference slots by foreign key, in any status.
	for _, b := range m.bookings {
		if b.SlotID == id {
			return ErrSlotHasBooking
		}
	}
	delete(m.slots, id)
	return nil
}

func sameDate(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (m *memRepo) listSlots(match func(*TimeSlot) bool) []TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimeSlot
	for _, s := range m.slots {
		if match(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !sameDate(out[i].Date, out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (m *memRepo) ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	return m.listSlots(func(s *TimeSlot) bool {
		return s.DoctorID == doctorID && sameDate(s.Date, date)
	}), nil
}

func (m *memRepo) ListApprovedAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	return m.listSlots(func(s *TimeSlot) bool {
		return s.DoctorID == doctorID && sameDate(s.Date, date) &&
			s.Status == SlotApproved && s.Available
	}), nil
}

func (m *memRepo) ListSlotsByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	return m.listSlots(func(s *TimeSlot) bool {
		return s.DoctorID == doctorID && !s.Date.Before(from) && !s.Date.After(to)
	}), nil
}

func (m *memRepo) ListSlots(ctx context.Context, status *SlotStatus, from, to *time.Time) ([]TimeSlot, error) {
	return m.listSlots(func(s *TimeSlot) bool {
		if status != nil && s.Status != *status {
			return false
		}
		if from != nil && s.Date.Before(*from) {
			return false
		}
		if to != nil && s.Date.After(*to) {
			return false
		}
		return true
	}), nil
}

func (m *memRepo) CreateBooking(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) UpdateBooking(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	b.UpdatedAt = time.Now()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memRepo) GetActiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.SlotID == slotID && (b.Status == StatusPending || b.Status == StatusConfirmed) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (m *memRepo) listBookings(match func(*Booking) bool, limit, offset int) []Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if match(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (m *memRepo) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	return m.listBookings(func(b *Booking) bool { return b.PatientID == patientID }, limit, offset), nil
}

func (m *memRepo) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Booking, error) {
	return m.listBookings(func(b *Booking) bool { return b.DoctorID == doctorID }, limit, offset), nil
}

func (m *memRepo) ListBookingsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error) {
	slotDates := make(map[uuid.UUID]time.Time)
	m.mu.Lock()
	for id, s := range m.slots {
		slotDates[id] = s.Date
	}
	n := len(m.bookings)
	m.mu.Unlock()
	return m.listBookings(func(b *Booking) bool {
		return b.DoctorID == doctorID && sameDate(slotDates[b.SlotID], date)
	}, n, 0), nil
}

func (m *memRepo) ListBookings(ctx context.Context, status *BookingStatus, limit, offset int) ([]Booking, error) {
	return m.listBookings(func(b *Booking) bool {
		return status == nil || b.Status == *status
	}, limit, offset), nil
}

func (m *memRepo) AppendHistory(ctx context.Context, h *StatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.New()
	h.ChangedAt = time.Now()
	m.history = append(m.history, *h)
	return nil
}

func (m *memRepo) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatusHistory
	// Newest first, matching the persistent implementation.
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].BookingID == bookingID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

// mapDoctors resolves actor user ids to doctor ids from a fixed map.
type mapDoctors map[uuid.UUID]uuid.UUID

func (m mapDoctors) DoctorID(ctx context.Context, actorID uuid.UUID) (uuid.UUID, bool, error) {
	id, ok := m[actorID]
	return id, ok, nil
}

// recordNotifier captures event names in order.
type recordNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordNotifier) record(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, name)
}

func (n *recordNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordNotifier) SlotPendingCreated(context.Context, *TimeSlot) { n.record("slot_pending") }
func (n *recordNotifier) SlotApproved(context.Context, *TimeSlot)      { n.record("slot_approved") }
func (n *recordNotifier) SlotRejected(context.Context, *TimeSlot)      { n.record("slot_rejected") }
func (n *recordNotifier) BookingCreated(context.Context, *Booking)     { n.record("booking_created") }
func (n *recordNotifier) BookingConfirmed(context.Context, *Booking)   { n.record("booking_confirmed") }
func (n *recordNotifier) BookingCompleted(context.Context, *Booking)   { n.record("booking_completed") }
func (n *recordNotifier) BookingCancelled(context.Context, *Booking, string) {
	n.record("booking_cancelled")
}

type testEnv struct {
	repo     *memRepo
	doctors  mapDoctors
	notifier *recordNotifier
	svc      *Service
}

func newTestEnv() *testEnv {
	repo := newMemRepo()
	doctors := mapDoctors{}
	notifier := &recordNotifier{}
	svc := NewService(repo, lock.NewMemoryLocker(2*time.Second), doctors, notifier, zerolog.Nop())
	return &testEnv{repo: repo, doctors: doctors, notifier: notifier, svc: svc}
}

var _ identity.DoctorResolver = mapDoctors{}
var _ Repository = (*memRepo)(nil)
var _ Notifier = (*recordNotifier)(nil)
