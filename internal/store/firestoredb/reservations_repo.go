package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"evently/backend/internal/domain"
	"evently/backend/internal/store"
)

type ReservationRepo struct {
	client *firestore.Client
}

type reservationDoc struct {
	ProviderID string    `firestore:"providerId"`
	ClientID   string    `firestore:"clientId"`
	Day        string    `firestore:"day"`
	StartTime  string    `firestore:"startTime"`
	EndTime    string    `firestore:"endTime"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

type reservationTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

// CreateReservation runs the overlap check and the insert in one Firestore
// transaction; Firestore retries it when a concurrent booking touched the
// same documents.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created, err := store.InsertIfFree(ctx, reservationTx{client: r.client, tx: tx}, res)
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
	return collectReservations(bookedQuery(r.client, providerID, day).Documents(ctx))
}

func (r *ReservationRepo) CancelReservation(ctx context.Context, providerID string, reservationID uuid.UUID) error {
	ref := r.client.Collection(reservationsCollection).Doc(reservationID.String())
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return store.ErrNotFound
			}
			return err
		}
		var doc reservationDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("%w: %v", store.ErrCorruptRecord, err)
		}
		if doc.ProviderID != providerID {
			return store.ErrNotFound
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(domain.ReservationStatusCancelled)},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
}

func (t reservationTx) ListBooked(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
	return collectReservations(t.tx.Documents(bookedQuery(t.client, providerID, day)))
}

func (t reservationTx) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	snap, err := t.tx.Get(t.client.Collection(reservationsCollection).Doc(id.String()))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Reservation{}, store.ErrNotFound
		}
		return domain.Reservation{}, err
	}
	var doc reservationDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Reservation{}, fmt.Errorf("%w: %v", store.ErrCorruptRecord, err)
	}
	return reservationFromDoc(snap.Ref.ID, doc)
}

func (t reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if res.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.ID = id
	}
	now := time.Now().UTC()
	if res.Status == "" {
		res.Status = domain.ReservationStatusBooked
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	ref := t.client.Collection(reservationsCollection).Doc(res.ID.String())
	if err := t.tx.Create(ref, docFromReservation(res)); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func bookedQuery(client *firestore.Client, providerID, day string) firestore.Query {
	return client.Collection(reservationsCollection).
		Where("providerId", "==", providerID).
		Where("day", "==", day).
		Where("status", "==", string(domain.ReservationStatusBooked))
}

func collectReservations(it *firestore.DocumentIterator) ([]domain.Reservation, error) {
	defer it.Stop()

	out := make([]domain.Reservation, 0, 8)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc reservationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrCorruptRecord, err)
		}
		r, err := reservationFromDoc(snap.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortReservations(out)
	return out, nil
}

func sortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		return domain.ParseClock(rs[i].StartTime) < domain.ParseClock(rs[j].StartTime)
	})
}

func reservationFromDoc(id string, doc reservationDoc) (domain.Reservation, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%w: reservation id %q", store.ErrCorruptRecord, id)
	}
	return domain.Reservation{
		ID:         parsed,
		ProviderID: doc.ProviderID,
		ClientID:   doc.ClientID,
		Day:        doc.Day,
		StartTime:  doc.StartTime,
		EndTime:    doc.EndTime,
		Status:     domain.ReservationStatus(doc.Status),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func docFromReservation(r domain.Reservation) reservationDoc {
	return reservationDoc{
		ProviderID: r.ProviderID,
		ClientID:   r.ClientID,
		Day:        r.Day,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
