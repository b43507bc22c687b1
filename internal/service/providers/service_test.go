package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"evently/backend/internal/domain"
	"evently/backend/internal/lock"
	"evently/backend/internal/store"
)

type fakeProviders struct {
	getFn  func(ctx context.Context, id string) (domain.Provider, error)
	listFn func(ctx context.Context) ([]domain.Provider, error)
	saveFn func(ctx context.Context, p domain.Provider) (domain.Provider, error)
}

func (f *fakeProviders) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	if f.getFn == nil {
		panic("GetProvider not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeProviders) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	if f.listFn == nil {
		panic("ListProviders not configured")
	}
	return f.listFn(ctx)
}

func (f *fakeProviders) SaveProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	if f.saveFn == nil {
		panic("SaveProvider not configured")
	}
	return f.saveFn(ctx, p)
}

type fakeReservations struct {
	createFn func(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	listFn   func(ctx context.Context, providerID, day string) ([]domain.Reservation, error)
	cancelFn func(ctx context.Context, providerID string, id uuid.UUID) error
}

func (f *fakeReservations) CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if f.createFn == nil {
		panic("CreateReservation not configured")
	}
	return f.createFn(ctx, r)
}

func (f *fakeReservations) ListReservations(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
	if f.listFn == nil {
		panic("ListReservations not configured")
	}
	return f.listFn(ctx, providerID, day)
}

func (f *fakeReservations) CancelReservation(ctx context.Context, providerID string, id uuid.UUID) error {
	if f.cancelFn == nil {
		panic("CancelReservation not configured")
	}
	return f.cancelFn(ctx, providerID, id)
}

type recordingLocker struct {
	keys []string
	err  error
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

// mondayProvider opens on Mondays 09:00-12:00 and blocks 2026-03-09.
func mondayProvider(id, name string) domain.Provider {
	return domain.Provider{
		ID:   id,
		Name: name,
		Data: map[string]any{
			"category": "dj",
			"cities":   []any{"Lyon"},
			"price":    "400 €",
			"availability": map[string]any{
				"weekly": map[string]any{
					"monday": map[string]any{
						"active": true,
						"slots":  []any{map[string]any{"start": "09:00", "end": "12:00"}},
					},
				},
				"blockedDates": []any{"2026-03-09"},
			},
		},
	}
}

func staticProviders(ps ...domain.Provider) *fakeProviders {
	return &fakeProviders{
		getFn: func(ctx context.Context, id string) (domain.Provider, error) {
			for _, p := range ps {
				if p.ID == id {
					return p, nil
				}
			}
			return domain.Provider{}, store.ErrNotFound
		},
		listFn: func(ctx context.Context) ([]domain.Provider, error) {
			return ps, nil
		},
	}
}

func requireValidation(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
	}
	if want != "" && vErr.Error() != want {
		t.Fatalf("error = %q, want %q", vErr.Error(), want)
	}
}

func TestServiceCheckBookable(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{}, nil, Options{})

	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{name: "open monday", start: "2026-03-02", want: true},
		{name: "closed tuesday", start: "2026-03-03", want: false},
		{name: "week containing a monday", start: "2026-03-01", end: "2026-03-07", want: true},
		{name: "blocked monday only", start: "2026-03-08", end: "2026-03-14", want: false},
		{name: "no range", start: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CheckBookable(context.Background(), "p1", tt.start, tt.end)
			if err != nil {
				t.Fatalf("CheckBookable error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CheckBookable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceCheckBookable_Validation(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{}, nil, Options{MaxRangeDays: 7})

	_, err := svc.CheckBookable(context.Background(), "p1", "2026-03-10", "2026-03-02")
	requireValidation(t, err, "end must not be before start")

	_, err = svc.CheckBookable(context.Background(), "p1", "2026-03-01", "2026-03-08")
	requireValidation(t, err, "date range too long")

	_, err = svc.CheckBookable(context.Background(), "p1", "", "2026-03-08")
	requireValidation(t, err, "start is required when end is set")

	_, err = svc.CheckBookable(context.Background(), " ", "2026-03-02", "")
	requireValidation(t, err, "provider_id is required")

	_, err = svc.CheckBookable(context.Background(), "missing", "2026-03-02", "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestServiceListSlots_RemovesBookedSlots(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{
		listFn: func(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
			if providerID != "p1" || day != "2026-03-02" {
				t.Fatalf("ListReservations(%q, %q)", providerID, day)
			}
			return []domain.Reservation{
				{StartTime: "10:00", EndTime: "11:00", Status: domain.ReservationStatusBooked},
				{StartTime: "09:00", EndTime: "10:00", Status: domain.ReservationStatusCancelled},
			}, nil
		},
	}, nil, Options{})

	got, err := svc.ListSlots(context.Background(), ListSlotsInput{
		ProviderID:      "p1",
		Date:            "2026-03-02",
		DurationMinutes: 60,
		StepMinutes:     60,
	})
	if err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	want := []domain.TimeSlot{{Start: "09:00", End: "10:00"}, {Start: "11:00", End: "12:00"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ListSlots = %+v, want %+v", got, want)
	}
}

func TestServiceListSlots_DefaultStepFromOptions(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{
		listFn: func(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
			return nil, nil
		},
	}, nil, Options{DefaultStepMinutes: 90})

	got, err := svc.ListSlots(context.Background(), ListSlotsInput{ProviderID: "p1", Date: "2026-03-02", DurationMinutes: 60})
	if err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	if len(got) != 2 || got[0].Start != "09:00" || got[1].Start != "10:30" {
		t.Fatalf("ListSlots = %+v", got)
	}
}

func TestServiceListSlots_ClosedDaySkipsReservationLookup(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{}, nil, Options{})

	for _, date := range []string{"2026-03-03", "2026-03-09"} {
		got, err := svc.ListSlots(context.Background(), ListSlotsInput{ProviderID: "p1", Date: date, DurationMinutes: 30})
		if err != nil {
			t.Fatalf("ListSlots(%s) error: %v", date, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("ListSlots(%s) = %+v, want empty", date, got)
		}
	}
}

// withMondayWindow replaces the Monday schedule of p with a single window.
func withMondayWindow(p domain.Provider, start, end string) domain.Provider {
	p.Data["availability"] = map[string]any{
		"weekly": map[string]any{
			"monday": map[string]any{
				"active": true,
				"slots":  []any{map[string]any{"start": start, "end": end}},
			},
		},
	}
	return p
}

func TestServiceListSlots_MidnightWindowLastSlotIsBookable(t *testing.T) {
	var created domain.Reservation
	svc := NewService(staticProviders(withMondayWindow(mondayProvider("p1", "DJ Nova"), "22:00", "24:00")), &fakeReservations{
		listFn: func(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
			created = r
			return r, nil
		},
	}, nil, Options{})

	slots, err := svc.ListSlots(context.Background(), ListSlotsInput{
		ProviderID:      "p1",
		Date:            "2026-03-02",
		DurationMinutes: 60,
		StepMinutes:     60,
	})
	if err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	want := []domain.TimeSlot{{Start: "22:00", End: "23:00"}, {Start: "23:00", End: "24:00"}}
	if len(slots) != len(want) || slots[0] != want[0] || slots[1] != want[1] {
		t.Fatalf("ListSlots = %+v, want %+v", slots, want)
	}

	last := slots[len(slots)-1]
	_, err = svc.CreateReservation(context.Background(), CreateReservationInput{
		ProviderID: "p1",
		ClientID:   "c1",
		Date:       "2026-03-02",
		StartTime:  last.Start,
		EndTime:    last.End,
	})
	if err != nil {
		t.Fatalf("CreateReservation(%+v) error: %v", last, err)
	}
	if created.StartTime != "23:00" || created.EndTime != "24:00" {
		t.Fatalf("reservation = %+v", created)
	}

	_, err = svc.CreateReservation(context.Background(), CreateReservationInput{
		ProviderID: "p1",
		ClientID:   "c1",
		Date:       "2026-03-02",
		StartTime:  "24:00",
		EndTime:    "24:00",
	})
	requireValidation(t, err, "start_time must be HH:MM")
}

func TestServiceListSlots_ClampsStoredWindowsToOneDay(t *testing.T) {
	svc := NewService(staticProviders(withMondayWindow(mondayProvider("p1", "DJ Nova"), "00:00", "5000:00")), &fakeReservations{
		listFn: func(ctx context.Context, providerID, day string) ([]domain.Reservation, error) {
			return nil, nil
		},
	}, nil, Options{})

	got, err := svc.ListSlots(context.Background(), ListSlotsInput{
		ProviderID:      "p1",
		Date:            "2026-03-02",
		DurationMinutes: 60,
		StepMinutes:     60,
	})
	if err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("len(ListSlots) = %d, want 24", len(got))
	}
	if last := got[len(got)-1]; last != (domain.TimeSlot{Start: "23:00", End: "24:00"}) {
		t.Fatalf("last slot = %+v", last)
	}
}

func TestServiceListSlots_Validation(t *testing.T) {
	svc := NewService(staticProviders(), &fakeReservations{}, nil, Options{})

	_, err := svc.ListSlots(context.Background(), ListSlotsInput{ProviderID: "p1", Date: "03/02/2026", DurationMinutes: 30})
	requireValidation(t, err, "date must be YYYY-MM-DD")

	_, err = svc.ListSlots(context.Background(), ListSlotsInput{ProviderID: "p1", Date: "2026-03-02", DurationMinutes: 0})
	requireValidation(t, err, "duration_minutes must be between 1 and 1440")

	_, err = svc.ListSlots(context.Background(), ListSlotsInput{ProviderID: "p1", Date: "2026-03-02", DurationMinutes: 30, StepMinutes: -5})
	requireValidation(t, err, "step_minutes must not be negative")
}

func TestServiceSearchProviders_Filters(t *testing.T) {
	cheap := mondayProvider("p2", "Alpha Sound")
	cheap.Data["price"] = "150 €"
	paris := mondayProvider("p3", "Zeta Events")
	paris.Data["cities"] = []any{"Paris"}
	caterer := mondayProvider("p4", "Beta Food")
	caterer.Data["category"] = "traiteur"
	noPrice := mondayProvider("p5", "Gamma")
	delete(noPrice.Data, "price")

	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova"), cheap, paris, caterer, noPrice), &fakeReservations{}, nil, Options{})

	maxPrice := 200.0
	tests := []struct {
		name string
		in   SearchInput
		want []string
	}{
		{name: "no filters sorted by name", in: SearchInput{}, want: []string{"p2", "p4", "p1", "p5", "p3"}},
		{name: "city", in: SearchInput{City: "lyon"}, want: []string{"p2", "p4", "p1", "p5"}},
		{name: "category", in: SearchInput{Category: "Traiteur"}, want: []string{"p4"}},
		{name: "max price excludes unpriced", in: SearchInput{MaxPrice: &maxPrice}, want: []string{"p2"}},
		{name: "blocked day", in: SearchInput{Start: "2026-03-09"}, want: []string{}},
		{name: "open day", in: SearchInput{Start: "2026-03-02", City: "Paris"}, want: []string{"p3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SearchProviders(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("SearchProviders error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SearchProviders = %+v, want ids %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Fatalf("SearchProviders = %+v, want ids %v", got, tt.want)
				}
			}
		})
	}
}

func TestServiceSaveProvider(t *testing.T) {
	var saved domain.Provider
	svc := NewService(&fakeProviders{
		saveFn: func(ctx context.Context, p domain.Provider) (domain.Provider, error) {
			saved = p
			return p, nil
		},
	}, &fakeReservations{}, nil, Options{})

	_, err := svc.SaveProvider(context.Background(), SaveProviderInput{
		ID:   " p1 ",
		Data: map[string]any{"name": "  Studio  "},
	})
	if err != nil {
		t.Fatalf("SaveProvider error: %v", err)
	}
	if saved.ID != "p1" || saved.Name != "Studio" {
		t.Fatalf("saved = %+v", saved)
	}

	_, err = svc.SaveProvider(context.Background(), SaveProviderInput{ID: "p1"})
	requireValidation(t, err, "name is required")

	_, err = svc.SaveProvider(context.Background(), SaveProviderInput{ID: "a/b", Name: "x"})
	requireValidation(t, err, "invalid provider_id")

	_, err = svc.SaveProvider(context.Background(), SaveProviderInput{ID: "p1", Name: "x", Data: map[string]any{"availability": "always"}})
	requireValidation(t, err, "availability must be an object")
}

func TestServiceSaveProvider_RejectsWindowsOutsideADay(t *testing.T) {
	var saves int
	svc := NewService(&fakeProviders{
		saveFn: func(ctx context.Context, p domain.Provider) (domain.Provider, error) {
			saves++
			return p, nil
		},
	}, &fakeReservations{}, nil, Options{})

	save := func(start, end string) error {
		p := withMondayWindow(domain.Provider{ID: "p1", Name: "Studio", Data: map[string]any{}}, start, end)
		_, err := svc.SaveProvider(context.Background(), SaveProviderInput{ID: p.ID, Name: p.Name, Data: p.Data})
		return err
	}

	if err := save("22:00", "24:00"); err != nil {
		t.Fatalf("SaveProvider(22:00-24:00) error: %v", err)
	}
	if err := save("9:00", "12:30"); err != nil {
		t.Fatalf("SaveProvider(9:00-12:30) error: %v", err)
	}

	requireValidation(t, save("00:00", "5000:00"), "availability.monday window 00:00-5000:00 must use HH:MM between 00:00 and 24:00")
	requireValidation(t, save("24:00", "24:00"), "")
	requireValidation(t, save("10:75", "12:00"), "")
	requireValidation(t, save("noon", "13:00"), "")

	if saves != 2 {
		t.Fatalf("saves = %d, want 2", saves)
	}
}

func TestServiceGetAvailability_NilWhenUnpublished(t *testing.T) {
	svc := NewService(staticProviders(domain.Provider{ID: "p1", Name: "x", Data: map[string]any{}}), &fakeReservations{}, nil, Options{})

	meta, err := svc.GetAvailability(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if meta != nil {
		t.Fatalf("meta = %+v, want nil", meta)
	}
}

func TestServiceCreateReservation_LocksProviderDayAndCanonicalizesTimes(t *testing.T) {
	var got domain.Reservation
	locker := &recordingLocker{}
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{
		createFn: func(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
			got = r
			return r, nil
		},
	}, locker, Options{})

	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		ProviderID: "p1",
		ClientID:   " c1 ",
		Date:       "2026-03-02",
		StartTime:  "9:30",
		EndTime:    "10:30",
	})
	if err != nil {
		t.Fatalf("CreateReservation error: %v", err)
	}
	if len(locker.keys) != 1 || locker.keys[0] != "p1:2026-03-02" {
		t.Fatalf("lock keys = %v", locker.keys)
	}
	if got.StartTime != "09:30" || got.EndTime != "10:30" || got.ClientID != "c1" {
		t.Fatalf("reservation = %+v", got)
	}
	if got.ID == uuid.Nil || got.Status != domain.ReservationStatusBooked {
		t.Fatalf("reservation = %+v", got)
	}
}

func TestServiceCreateReservation_IdempotencyKeyDeterministicUUID(t *testing.T) {
	var ids []uuid.UUID
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{
		createFn: func(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
			ids = append(ids, r.ID)
			return r, nil
		},
	}, nil, Options{})

	in := CreateReservationInput{
		ProviderID:     "p1",
		ClientID:       "c1",
		Date:           "2026-03-02",
		StartTime:      "09:00",
		EndTime:        "10:00",
		IdempotencyKey: "k1",
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateReservation(context.Background(), in); err != nil {
			t.Fatalf("CreateReservation error: %v", err)
		}
	}
	in.IdempotencyKey = "k2"
	if _, err := svc.CreateReservation(context.Background(), in); err != nil {
		t.Fatalf("CreateReservation error: %v", err)
	}

	if len(ids) != 3 {
		t.Fatalf("captured ids = %d, want 3", len(ids))
	}
	if ids[0] != ids[1] {
		t.Fatalf("ids differ: %s vs %s", ids[0], ids[1])
	}
	if ids[0] == ids[2] {
		t.Fatalf("expected different ids for different keys, got %s", ids[0])
	}
}

func TestServiceCreateReservation_RejectsOutsideOpeningHours(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{}, nil, Options{})

	tests := []struct {
		name string
		in   CreateReservationInput
		want string
	}{
		{
			name: "closed weekday",
			in:   CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-03", StartTime: "09:00", EndTime: "10:00"},
			want: "provider is not available on that date",
		},
		{
			name: "blocked date",
			in:   CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-09", StartTime: "09:00", EndTime: "10:00"},
			want: "provider is not available on that date",
		},
		{
			name: "past closing time",
			in:   CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-02", StartTime: "11:30", EndTime: "12:30"},
			want: "requested time is outside the provider's opening hours",
		},
		{
			name: "end before start",
			in:   CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-02", StartTime: "10:00", EndTime: "09:00"},
			want: "end_time must be after start_time",
		},
		{
			name: "bad clock",
			in:   CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-02", StartTime: "24:00", EndTime: "25:00"},
			want: "start_time must be HH:MM",
		},
		{
			name: "missing client",
			in:   CreateReservationInput{ProviderID: "p1", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00"},
			want: "client_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateReservation(context.Background(), tt.in)
			requireValidation(t, err, tt.want)
		})
	}
}

func TestServiceCreateReservation_PropagatesErrors(t *testing.T) {
	svc := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{
		createFn: func(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
			return domain.Reservation{}, store.ErrConflict
		},
	}, nil, Options{})

	in := CreateReservationInput{ProviderID: "p1", ClientID: "c1", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00"}
	if _, err := svc.CreateReservation(context.Background(), in); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("error = %v, want %v", err, store.ErrConflict)
	}

	busy := NewService(staticProviders(mondayProvider("p1", "DJ Nova")), &fakeReservations{}, &recordingLocker{err: lock.ErrNotAcquired}, Options{})
	if _, err := busy.CreateReservation(context.Background(), in); !errors.Is(err, lock.ErrNotAcquired) {
		t.Fatalf("error = %v, want %v", err, lock.ErrNotAcquired)
	}
}

func TestServiceCancelReservation(t *testing.T) {
	id := uuid.New()
	var gotProvider string
	var gotID uuid.UUID
	svc := NewService(&fakeProviders{}, &fakeReservations{
		cancelFn: func(ctx context.Context, providerID string, reservationID uuid.UUID) error {
			gotProvider, gotID = providerID, reservationID
			return nil
		},
	}, nil, Options{})

	if err := svc.CancelReservation(context.Background(), "p1", id); err != nil {
		t.Fatalf("CancelReservation error: %v", err)
	}
	if gotProvider != "p1" || gotID != id {
		t.Fatalf("cancelled %q/%s", gotProvider, gotID)
	}

	requireValidation(t, svc.CancelReservation(context.Background(), "p1", uuid.Nil), "reservation_id is required")
}

func TestCanonicalClock(t *testing.T) {
	tests := []struct {
		in       string
		endOfDay bool
		want     string
		ok       bool
	}{
		{in: "09:00", want: "09:00", ok: true},
		{in: "9:05", want: "09:05", ok: true},
		{in: " 23:59 ", want: "23:59", ok: true},
		{in: "24:00", ok: false},
		{in: "24:00", endOfDay: true, want: "24:00", ok: true},
		{in: "24:01", endOfDay: true, ok: false},
		{in: "99:00", endOfDay: true, ok: false},
		{in: "12:60", ok: false},
		{in: "12:5", ok: false},
		{in: "ab:cd", ok: false},
		{in: "1200", ok: false},
		{in: "-1:00", ok: false},
	}

	for _, tt := range tests {
		got, ok := canonicalClock(tt.in, tt.endOfDay)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("canonicalClock(%q, %v) = %q, %v; want %q, %v", tt.in, tt.endOfDay, got, ok, tt.want, tt.ok)
		}
	}
}
