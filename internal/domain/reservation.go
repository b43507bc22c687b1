package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationStatusBooked    ReservationStatus = "booked"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID string            `bun:"provider_id,notnull"`
	ClientID   string            `bun:"client_id,notnull"`
	Day        string            `bun:"day,notnull"`
	StartTime  string            `bun:"start_time,notnull"`
	EndTime    string            `bun:"end_time,notnull"`
	Status     ReservationStatus `bun:"status,notnull"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.Status == "" {
			r.Status = ReservationStatusBooked
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func (r Reservation) Slot() TimeSlot {
	return TimeSlot{Start: r.StartTime, End: r.EndTime}
}

// SameRequest reports whether o describes the same booking as r, ignoring
// identity, status and timestamps.
func (r Reservation) SameRequest(o Reservation) bool {
	return r.ProviderID == o.ProviderID &&
		r.ClientID == o.ClientID &&
		r.Day == o.Day &&
		r.StartTime == o.StartTime &&
		r.EndTime == o.EndTime
}

// ReservedSlots returns the slots held by booked reservations.
func ReservedSlots(rs []Reservation) []TimeSlot {
	out := make([]TimeSlot, 0, len(rs))
	for _, r := range rs {
		if r.Status == ReservationStatusCancelled {
			continue
		}
		out = append(out, r.Slot())
	}
	return out
}
