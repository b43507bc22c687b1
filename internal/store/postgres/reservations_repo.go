package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"evently/backend/internal/domain"
	"evently/backend/internal/store"
)

type ReservationRepo struct {
	db bun.IDB
}

func NewReservationRepo(db bun.IDB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

type reservationTx struct {
	tx bun.Tx
}

func (r *ReservationRepo) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.InProviderDay(ctx, res.ProviderID, res.Day, func(ctx context.Context, tx store.ReservationTx) error {
		created, err := store.InsertIfFree(ctx, tx, res)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return out, nil
}

func (r *ReservationRepo) ListReservations(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
	return listBooked(ctx, r.db, providerID, day)
}

func (r *ReservationRepo) CancelReservation(ctx context.Context, providerID string, reservationID uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Reservation)(nil)).
		Set("status = ?", domain.ReservationStatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("provider_id = ?", providerID).
		Where("id = ?", reservationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// InProviderDay runs fn in a transaction holding the advisory lock for one
// provider's day, so concurrent bookings of that day are serialized.
func (r *ReservationRepo) InProviderDay(ctx context.Context, providerID, day string, fn func(ctx context.Context, tx store.ReservationTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDay(ctx, tx, providerID, day); err != nil {
			return err
		}
		return fn(ctx, reservationTx{tx: tx})
	})
}

func lockProviderDay(ctx context.Context, tx bun.Tx, providerID, day string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerDayKey(providerID, day)).Exec(ctx)
	return err
}

func providerDayKey(providerID, day string) string {
	return "reservations:" + providerID + ":" + day
}

func (r reservationTx) ListBooked(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
	return listBooked(ctx, r.tx, providerID, day)
}

func (r reservationTx) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.tx.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, store.ErrNotFound
		}
		return domain.Reservation{}, err
	}
	return out, nil
}

func (r reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := domain.Reservation{
		ID:         res.ID,
		ProviderID: res.ProviderID,
		ClientID:   res.ClientID,
		Day:        res.Day,
		StartTime:  res.StartTime,
		EndTime:    res.EndTime,
		Status:     res.Status,
		CreatedAt:  res.CreatedAt,
		UpdatedAt:  res.UpdatedAt,
	}

	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Reservation{}, mapInsertError(err)
	}
	return m, nil
}

func listBooked(ctx context.Context, db bun.IDB, providerID, day string) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("day = ?", day).
		Where("status = ?", domain.ReservationStatusBooked).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return store.ErrIdempotencyConflict
	case "23503":
		return store.ErrNotFound
	case "23514":
		return store.ErrCorruptRecord
	}
	return err
}
