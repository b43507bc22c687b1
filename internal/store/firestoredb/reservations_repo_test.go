package firestoredb

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"evently/backend/internal/domain"
	"evently/backend/internal/store"
)

func TestReservationDocRoundTrip(t *testing.T) {
	created := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	in := domain.Reservation{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		ProviderID: "p1",
		ClientID:   "c1",
		Day:        "2026-01-05",
		StartTime:  "09:00",
		EndTime:    "10:00",
		Status:     domain.ReservationStatusBooked,
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	out, err := reservationFromDoc(in.ID.String(), docFromReservation(in))
	if err != nil {
		t.Fatalf("reservationFromDoc error: %v", err)
	}
	if out.ID != in.ID || !out.SameRequest(in) || out.Status != in.Status || !out.CreatedAt.Equal(created) {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestReservationFromDoc_RejectsBadID(t *testing.T) {
	_, err := reservationFromDoc("not-a-uuid", reservationDoc{})
	if !errors.Is(err, store.ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestSortReservations_ByStartTime(t *testing.T) {
	rs := []domain.Reservation{
		{StartTime: "14:00"},
		{StartTime: "9:30"},
		{StartTime: "10:00"},
	}
	sortReservations(rs)
	if rs[0].StartTime != "9:30" || rs[1].StartTime != "10:00" || rs[2].StartTime != "14:00" {
		t.Fatalf("order = %+v", rs)
	}
}

func TestProviderDocument_SetsNameWithoutMutatingInput(t *testing.T) {
	p := domain.Provider{ID: "p1", Name: "DJ Nova", Data: map[string]any{"city": "Lyon"}}
	doc := providerDocument(p)
	if doc["name"] != "DJ Nova" || doc["city"] != "Lyon" {
		t.Fatalf("doc = %v", doc)
	}
	if _, ok := p.Data["name"]; ok {
		t.Fatalf("input data mutated: %v", p.Data)
	}

	back := providerFromDocument("p1", doc, time.Time{}, time.Time{})
	if back.Name != "DJ Nova" || back.ID != "p1" {
		t.Fatalf("provider = %+v", back)
	}
	if empty := providerFromDocument("p2", nil, time.Time{}, time.Time{}); empty.Data == nil {
		t.Fatalf("expected non-nil data")
	}
}
