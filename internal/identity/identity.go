// Package identity resolves opaque authenticated actor ids to the
// role-specific capabilities the booking core needs. How identities are
// issued is someone else's problem; the core only asks "which doctor,
// if any, is this actor".
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DoctorResolver maps an actor id to the doctor record it controls.
// ok is false when the actor is not a doctor at all.
type DoctorResolver interface {
	DoctorID(ctx context.Context, actorID uuid.UUID) (doctorID uuid.UUID, ok bool, err error)
}

type PgDoctorResolver struct {
	pool *pgxpool.Pool
}

func NewPgDoctorResolver(pool *pgxpool.Pool) *PgDoctorResolver {
	return &PgDoctorResolver{pool: pool}
}

func (r *PgDoctorResolver) DoctorID(ctx context.Context, actorID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM doctors WHERE user_id = $1
	`, actorID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}
