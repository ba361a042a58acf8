package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCodeLockNotAvailable     = "55P03"
	pgCodeSerializationFailure = "40001"
	pgCodeForeignKeyViolation  = "23503"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		// Already inside a transaction, reuse it.
		return fn(r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{q: tx}); err != nil {
		return translatePgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translatePgError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeLockNotAvailable:
			return ErrSlotLocked
		case pgCodeSerializationFailure:
			return ErrTxConflict
		}
	}
	return err
}

// Helpers

const slotColumns = `id, doctor_id, date, start_minute, end_minute, is_available, status, version, created_at, updated_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	var start, end int16

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&start,
		&end,
		&s.Available,
		&s.Status,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Start = TimeOfDay(start)
	s.End = TimeOfDay(end)
	return &s, nil
}

const bookingColumns = `id, patient_id, doctor_id, service_id, time_slot_id, status, notes, doctor_notes, cancellation_reason, cancelled_by, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.DoctorID,
		&b.ServiceID,
		&b.SlotID,
		&b.Status,
		&b.Notes,
		&b.DoctorNotes,
		&b.CancellationReason,
		&b.CancelledBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func collectSlots(rows pgx.Rows) ([]TimeSlot, error) {
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, slot *TimeSlot) error {
	row := r.q.QueryRow(ctx, `
		INSERT INTO time_slots (id, doctor_id, date, start_minute, end_minute, is_available, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, now(), now())
		RETURNING `+slotColumns+`
	`, slot.ID, slot.DoctorID, slot.Date, int16(slot.Start), int16(slot.End), slot.Available, slot.Status)

	saved, err := scanSlot(row)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	*slot = *saved
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1
		FOR UPDATE NOWAIT
	`, id)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return slot, nil
}

func (r *PgRepository) SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
	`, id, available)
	if err != nil {
		return fmt.Errorf("update slot availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) SetSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET status = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, status)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		// Any booking row, even a finished one, keeps its slot via the
		// foreign key.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
			return ErrSlotHasBooking
		}
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListApprovedAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2 AND is_available AND status = 'APPROVED'
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListSlotsByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_minute
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListSlots(ctx context.Context, status *SlotStatus, from, to *time.Time) ([]TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE true`
	var args []any

	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date DESC, start_minute"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// Bookings

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) error {
	row := r.q.QueryRow(ctx, `
		INSERT INTO bookings (id, patient_id, doctor_id, service_id, time_slot_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+bookingColumns+`
	`, b.ID, b.PatientID, b.DoctorID, b.ServiceID, b.SlotID, b.Status, b.Notes)

	saved, err := scanBooking(row)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	*b = *saved
	return nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBooking(ctx context.Context, b *Booking) error {
	row := r.q.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    doctor_notes = $3,
		    cancellation_reason = $4,
		    cancelled_by = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, b.ID, b.Status, b.DoctorNotes, b.CancellationReason, b.CancelledBy)

	saved, err := scanBooking(row)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	*b = *saved
	return nil
}

func (r *PgRepository) GetActiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*Booking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE time_slot_id = $1 AND status IN ('PENDING', 'CONFIRMED')
	`, slotID)
	return scanBooking(row)
}

func (r *PgRepository) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListBookingsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT b.id, b.patient_id, b.doctor_id, b.service_id, b.time_slot_id, b.status,
		       b.notes, b.doctor_notes, b.cancellation_reason, b.cancelled_by, b.created_at, b.updated_at
		FROM bookings b
		JOIN time_slots s ON s.id = b.time_slot_id
		WHERE b.doctor_id = $1 AND s.date = $2
		ORDER BY s.start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListBookings(ctx context.Context, status *BookingStatus, limit, offset int) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE true`
	var args []any

	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// Status history

func (r *PgRepository) AppendHistory(ctx context.Context, h *StatusHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO booking_status_history (id, booking_id, old_status, new_status, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, h.ID, h.BookingID, h.OldStatus, h.NewStatus, h.ChangedBy, h.Reason)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (r *PgRepository) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, booking_id, old_status, new_status, changed_by, reason, changed_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY changed_at DESC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.BookingID, &h.OldStatus, &h.NewStatus, &h.ChangedBy, &h.Reason, &h.ChangedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
