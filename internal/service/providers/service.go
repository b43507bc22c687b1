package providers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"evently/backend/internal/domain"
	"evently/backend/internal/lock"
	"evently/backend/internal/store"
)

const (
	DefaultMaxRangeDays = 366
	minutesPerDay       = 24 * 60
	maxDurationMinutes  = minutesPerDay
	maxIDLength         = 128
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Options struct {
	DefaultStepMinutes int
	MaxRangeDays       int
}

type Service struct {
	providers    store.ProviderRepository
	reservations store.ReservationRepository
	locker       lock.Locker

	defaultStep  int
	maxRangeDays int
}

func NewService(providers store.ProviderRepository, reservations store.ReservationRepository, locker lock.Locker, opts Options) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if opts.DefaultStepMinutes <= 0 {
		opts.DefaultStepMinutes = domain.DefaultStepMinutes
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = DefaultMaxRangeDays
	}
	return &Service{
		providers:    providers,
		reservations: reservations,
		locker:       locker,
		defaultStep:  opts.DefaultStepMinutes,
		maxRangeDays: opts.MaxRangeDays,
	}
}

func (s *Service) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	id, err := providerID(id)
	if err != nil {
		return domain.Provider{}, err
	}
	return s.providers.GetProvider(ctx, id)
}

type SaveProviderInput struct {
	ID   string
	Name string
	Data map[string]any
}

func (s *Service) SaveProvider(ctx context.Context, in SaveProviderInput) (domain.Provider, error) {
	id, err := providerID(in.ID)
	if err != nil {
		return domain.Provider{}, err
	}

	data := in.Data
	if data == nil {
		data = map[string]any{}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		if n, ok := data["name"].(string); ok {
			name = strings.TrimSpace(n)
		}
	}
	if name == "" {
		return domain.Provider{}, validationError("name is required")
	}

	if raw, ok := data["availability"]; ok && raw != nil {
		if domain.NormalizeAvailabilityMeta(raw) == nil {
			return domain.Provider{}, validationError("availability must be an object")
		}
		if err := validateWindows(domain.NormalizeAvailabilityMeta(raw)); err != nil {
			return domain.Provider{}, err
		}
	}

	return s.providers.SaveProvider(ctx, domain.Provider{ID: id, Name: name, Data: data})
}

// GetAvailability returns the provider's normalized availability, or nil when
// the provider has not published any.
func (s *Service) GetAvailability(ctx context.Context, id string) (*domain.AvailabilityMeta, error) {
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Availability(), nil
}

func (s *Service) CheckBookable(ctx context.Context, id, start, end string) (bool, error) {
	start, end, err := s.dateRange(start, end)
	if err != nil {
		return false, err
	}
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return false, err
	}
	return domain.IsBookable(p.Availability(), start, end), nil
}

type ListSlotsInput struct {
	ProviderID      string
	Date            string
	DurationMinutes int
	StepMinutes     int
}

func (s *Service) ListSlots(ctx context.Context, in ListSlotsInput) ([]domain.TimeSlot, error) {
	if _, ok := domain.ParseISODate(in.Date); !ok {
		return nil, validationError("date must be YYYY-MM-DD")
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > maxDurationMinutes {
		return nil, validationError("duration_minutes must be between 1 and 1440")
	}
	if in.StepMinutes < 0 {
		return nil, validationError("step_minutes must not be negative")
	}

	p, err := s.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}

	windows := p.Availability().WindowsOn(in.Date)
	if len(windows) == 0 {
		return []domain.TimeSlot{}, nil
	}

	booked, err := s.reservations.ListReservations(ctx, p.ID, in.Date)
	if err != nil {
		return nil, err
	}

	step := in.StepMinutes
	if step == 0 {
		step = s.defaultStep
	}
	return domain.GenerateSlots(clampWindows(windows), in.DurationMinutes, domain.ReservedSlots(booked), step), nil
}

type SearchInput struct {
	Start    string
	End      string
	City     string
	Category string
	MaxPrice *float64
}

// SearchProviders lists the providers matching every filter that is set.
func (s *Service) SearchProviders(ctx context.Context, in SearchInput) ([]domain.ProviderSummary, error) {
	start, end, err := s.dateRange(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return nil, validationError("max_price must not be negative")
	}
	category := strings.TrimSpace(in.Category)

	all, err := s.providers.ListProviders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProviderSummary, 0, len(all))
	for _, p := range all {
		if category != "" && !strings.EqualFold(p.Category(), category) {
			continue
		}
		if !domain.ServesCity(p.Cities(), in.City) {
			continue
		}
		if in.MaxPrice != nil {
			price, ok := p.MinPrice()
			if !ok || price > *in.MaxPrice {
				continue
			}
		}
		if !domain.IsBookable(p.Availability(), start, end) {
			continue
		}
		out = append(out, p.Summary())
	}

	domain.SortSummaries(out)
	return out, nil
}

type CreateReservationInput struct {
	ProviderID     string
	ClientID       string
	Date           string
	StartTime      string
	EndTime        string
	IdempotencyKey string
}

func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	pid, err := providerID(in.ProviderID)
	if err != nil {
		return domain.Reservation{}, err
	}
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return domain.Reservation{}, validationError("client_id is required")
	}
	if _, ok := domain.ParseISODate(in.Date); !ok {
		return domain.Reservation{}, validationError("date must be YYYY-MM-DD")
	}

	start, ok := canonicalClock(in.StartTime, false)
	if !ok {
		return domain.Reservation{}, validationError("start_time must be HH:MM")
	}
	end, ok := canonicalClock(in.EndTime, true)
	if !ok {
		return domain.Reservation{}, validationError("end_time must be HH:MM")
	}
	if domain.ParseClock(end) <= domain.ParseClock(start) {
		return domain.Reservation{}, validationError("end_time must be after start_time")
	}

	res := domain.Reservation{
		ProviderID: pid,
		ClientID:   clientID,
		Day:        in.Date,
		StartTime:  start,
		EndTime:    end,
		Status:     domain.ReservationStatusBooked,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Reservation{}, validationError("idempotency_key too long")
		}
		res.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("evently:create_reservation:"+clientID+":"+key))
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.ID = id
	}

	var out domain.Reservation
	err = s.locker.WithLock(ctx, pid+":"+in.Date, func(ctx context.Context) error {
		p, err := s.providers.GetProvider(ctx, pid)
		if err != nil {
			return err
		}
		windows := clampWindows(p.Availability().WindowsOn(in.Date))
		if len(windows) == 0 {
			return validationError("provider is not available on that date")
		}
		if !domain.FitsWindow(windows, res.Slot()) {
			return validationError("requested time is outside the provider's opening hours")
		}

		created, err := s.reservations.CreateReservation(ctx, res)
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

func (s *Service) ListReservations(ctx context.Context, providerIDIn, date string) ([]domain.Reservation, error) {
	pid, err := providerID(providerIDIn)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.ParseISODate(date); !ok {
		return nil, validationError("date must be YYYY-MM-DD")
	}
	return s.reservations.ListReservations(ctx, pid, date)
}

func (s *Service) CancelReservation(ctx context.Context, providerIDIn string, reservationID uuid.UUID) error {
	pid, err := providerID(providerIDIn)
	if err != nil {
		return err
	}
	if reservationID == uuid.Nil {
		return validationError("reservation_id is required")
	}
	return s.reservations.CancelReservation(ctx, pid, reservationID)
}

// dateRange validates an optional ISO date range. An empty start disables the
// filter; an empty end means a single day.
func (s *Service) dateRange(start, end string) (string, string, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" {
		if end != "" {
			return "", "", validationError("start is required when end is set")
		}
		return "", "", nil
	}

	from, ok := domain.ParseISODate(start)
	if !ok {
		return "", "", validationError("start must be YYYY-MM-DD")
	}
	if end == "" {
		return start, start, nil
	}
	to, ok := domain.ParseISODate(end)
	if !ok {
		return "", "", validationError("end must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return "", "", validationError("end must not be before start")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > s.maxRangeDays {
		return "", "", validationError("date range too long")
	}
	return start, end, nil
}

func providerID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", validationError("provider_id is required")
	}
	if len(id) > maxIDLength || strings.Contains(id, "/") {
		return "", validationError("invalid provider_id")
	}
	return id, nil
}

// validateWindows rejects weekly windows whose clocks fall outside a day.
// Only an end may be "24:00".
func validateWindows(meta *domain.AvailabilityMeta) error {
	for _, key := range domain.WeekdayKeys {
		for _, w := range meta.Weekly[key].Slots {
			_, okStart := canonicalClock(w.Start, false)
			_, okEnd := canonicalClock(w.End, true)
			if !okStart || !okEnd {
				return validationError("availability." + key + " window " + w.Start + "-" + w.End + " must use HH:MM between 00:00 and 24:00")
			}
		}
	}
	return nil
}

// clampWindows caps window bounds at 24:00.
func clampWindows(windows []domain.TimeWindow) []domain.TimeWindow {
	out := make([]domain.TimeWindow, 0, len(windows))
	for _, w := range windows {
		start := min(domain.ParseClock(w.Start), minutesPerDay)
		end := min(domain.ParseClock(w.End), minutesPerDay)
		out = append(out, domain.TimeWindow{Start: domain.FormatClock(start), End: domain.FormatClock(end)})
	}
	return out
}

// canonicalClock accepts H:MM or HH:MM within a day and returns HH:MM. With
// endOfDay set, "24:00" is accepted as the closing bound.
func canonicalClock(s string, endOfDay bool) (string, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return "", false
	}
	for _, r := range hh + mm {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	minutes := domain.ParseClock(hh + ":" + mm)
	if domain.ParseClock("0:"+mm) >= 60 {
		return "", false
	}
	if minutes > minutesPerDay || (minutes == minutesPerDay && !endOfDay) {
		return "", false
	}
	return domain.FormatClock(minutes), true
}
