package store

import (
	"context"
	"errors"

	"evently/backend/internal/domain"
)

// InsertIfFree applies the booking rules shared by every driver: a replay of
// an idempotent request returns the stored reservation, a reused id with
// different details is ErrIdempotencyConflict and an overlap is ErrConflict.
func InsertIfFree(ctx context.Context, tx ReservationTx, r domain.Reservation) (domain.Reservation, error) {
	existing, err := tx.GetReservation(ctx, r.ID)
	switch {
	case err == nil:
		if !existing.SameRequest(r) {
			return domain.Reservation{}, ErrIdempotencyConflict
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return domain.Reservation{}, err
	}

	booked, err := tx.ListBooked(ctx, r.ProviderID, r.Day)
	if err != nil {
		return domain.Reservation{}, err
	}
	slot := r.Slot()
	for _, b := range booked {
		if domain.Overlaps(slot, b.Slot()) {
			return domain.Reservation{}, ErrConflict
		}
	}

	return tx.InsertReservation(ctx, r)
}
