package store

import (
	"context"

	"github.com/google/uuid"

	"evently/backend/internal/domain"
)

type ProviderRepository interface {
	GetProvider(ctx context.Context, id string) (domain.Provider, error)
	ListProviders(ctx context.Context) ([]domain.Provider, error)
	SaveProvider(ctx context.Context, p domain.Provider) (domain.Provider, error)
}

type ReservationRepository interface {
	// CreateReservation stores r unless it overlaps a booked reservation of the
	// same provider and day, in which case it returns ErrConflict.
	CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	ListReservations(ctx context.Context, providerID, day string) ([]domain.Reservation, error)
	CancelReservation(ctx context.Context, providerID string, reservationID uuid.UUID) error
}

// ReservationTx is the view of a provider's day inside a serialized transaction.
type ReservationTx interface {
	ListBooked(ctx context.Context, providerID, day string) ([]domain.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
}
