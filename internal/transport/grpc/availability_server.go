package grpc

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"evently/backend/internal/domain"
	"evently/backend/internal/lock"
	"evently/backend/internal/service/providers"
	"evently/backend/internal/store"
)

const ServiceName = "evently.v1.AvailabilityService"

type AvailabilityServer struct {
	svc availabilityService
	log *slog.Logger
}

type availabilityService interface {
	GetAvailability(ctx context.Context, providerID string) (*domain.AvailabilityMeta, error)
	CheckBookable(ctx context.Context, providerID, start, end string) (bool, error)
	ListSlots(ctx context.Context, in providers.ListSlotsInput) ([]domain.TimeSlot, error)
	SearchProviders(ctx context.Context, in providers.SearchInput) ([]domain.ProviderSummary, error)
	CreateReservation(ctx context.Context, in providers.CreateReservationInput) (domain.Reservation, error)
	ListReservations(ctx context.Context, providerID, date string) ([]domain.Reservation, error)
	CancelReservation(ctx context.Context, providerID string, reservationID uuid.UUID) error
}

// AvailabilityRPC is the handler set registered under ServiceName. Requests
// and responses are google.protobuf.Struct messages.
type AvailabilityRPC interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CheckBookable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SearchProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityRPC)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unary("GetAvailability", AvailabilityRPC.GetAvailability)},
		{MethodName: "CheckBookable", Handler: unary("CheckBookable", AvailabilityRPC.CheckBookable)},
		{MethodName: "ListSlots", Handler: unary("ListSlots", AvailabilityRPC.ListSlots)},
		{MethodName: "SearchProviders", Handler: unary("SearchProviders", AvailabilityRPC.SearchProviders)},
		{MethodName: "CreateReservation", Handler: unary("CreateReservation", AvailabilityRPC.CreateReservation)},
		{MethodName: "ListReservations", Handler: unary("ListReservations", AvailabilityRPC.ListReservations)},
		{MethodName: "CancelReservation", Handler: unary("CancelReservation", AvailabilityRPC.CancelReservation)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "evently/v1/availability.proto",
}

func RegisterAvailabilityServer(r grpc.ServiceRegistrar, srv AvailabilityRPC) {
	r.RegisterService(&AvailabilityServiceDesc, srv)
}

type rpcFunc func(AvailabilityRPC, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call rpcFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityRPC), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityRPC), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func NewAvailabilityServer(svc availabilityService, log *slog.Logger) *AvailabilityServer {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.availability")),
	}
}

func (s *AvailabilityServer) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetAvailability"))
	providerID := stringField(req, "provider_id")

	meta, err := s.svc.GetAvailability(ctx, providerID)
	if err != nil {
		return nil, s.statusError(log, err, "availability lookup failed", slog.String("provider_id", providerID))
	}

	var availability any
	if meta != nil {
		availability = meta.ToRecord()
	}
	return respond(log, map[string]any{
		"provider_id":  providerID,
		"availability": availability,
	})
}

func (s *AvailabilityServer) CheckBookable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CheckBookable"))
	providerID := stringField(req, "provider_id")
	start := stringField(req, "start")
	end := stringField(req, "end")

	ok, err := s.svc.CheckBookable(ctx, providerID, start, end)
	if err != nil {
		return nil, s.statusError(log, err, "bookable check failed", slog.String("provider_id", providerID))
	}

	log.Debug("bookable checked", slog.String("provider_id", providerID), slog.String("start", start), slog.String("end", end), slog.Bool("bookable", ok))
	return respond(log, map[string]any{"bookable": ok})
}

func (s *AvailabilityServer) ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListSlots"))
	in := providers.ListSlotsInput{
		ProviderID:      stringField(req, "provider_id"),
		Date:            stringField(req, "date"),
		DurationMinutes: intField(req, "duration_minutes"),
		StepMinutes:     intField(req, "step_minutes"),
	}

	slots, err := s.svc.ListSlots(ctx, in)
	if err != nil {
		return nil, s.statusError(log, err, "slots list failed", slog.String("provider_id", in.ProviderID), slog.String("date", in.Date))
	}

	out := make([]any, 0, len(slots))
	for _, sl := range slots {
		out = append(out, map[string]any{"start": sl.Start, "end": sl.End})
	}

	log.Debug("slots listed", slog.String("provider_id", in.ProviderID), slog.String("date", in.Date), slog.Int("count", len(out)))
	return respond(log, map[string]any{"slots": out})
}

func (s *AvailabilityServer) SearchProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SearchProviders"))
	in := providers.SearchInput{
		Start:    stringField(req, "start"),
		End:      stringField(req, "end"),
		City:     stringField(req, "city"),
		Category: stringField(req, "category"),
		MaxPrice: numberField(req, "max_price"),
	}

	found, err := s.svc.SearchProviders(ctx, in)
	if err != nil {
		return nil, s.statusError(log, err, "provider search failed")
	}

	out := make([]any, 0, len(found))
	for _, p := range found {
		out = append(out, summaryRecord(p))
	}

	log.Debug("providers searched", slog.String("city", in.City), slog.String("category", in.Category), slog.Int("count", len(out)))
	return respond(log, map[string]any{"providers": out})
}

func (s *AvailabilityServer) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateReservation"))
	in := providers.CreateReservationInput{
		ProviderID:     stringField(req, "provider_id"),
		ClientID:       stringField(req, "client_id"),
		Date:           stringField(req, "date"),
		StartTime:      stringField(req, "start_time"),
		EndTime:        stringField(req, "end_time"),
		IdempotencyKey: idempotencyKey(ctx),
	}

	res, err := s.svc.CreateReservation(ctx, in)
	if err != nil {
		return nil, s.statusError(log, err, "reservation create failed",
			slog.String("provider_id", in.ProviderID),
			slog.String("date", in.Date),
			slog.String("start_time", in.StartTime),
			slog.String("end_time", in.EndTime),
		)
	}

	log.Info(
		"reservation created",
		slog.String("reservation_id", res.ID.String()),
		slog.String("provider_id", res.ProviderID),
		slog.String("date", res.Day),
		slog.String("start_time", res.StartTime),
		slog.String("end_time", res.EndTime),
	)
	return respond(log, map[string]any{"reservation": reservationRecord(res)})
}

func (s *AvailabilityServer) ListReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListReservations"))
	providerID := stringField(req, "provider_id")
	date := stringField(req, "date")

	rs, err := s.svc.ListReservations(ctx, providerID, date)
	if err != nil {
		return nil, s.statusError(log, err, "reservations list failed", slog.String("provider_id", providerID), slog.String("date", date))
	}

	out := make([]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, reservationRecord(r))
	}
	return respond(log, map[string]any{"reservations": out})
}

func (s *AvailabilityServer) CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelReservation"))
	providerID := stringField(req, "provider_id")

	id, err := uuid.Parse(stringField(req, "reservation_id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("provider_id", providerID))
		return nil, status.Error(codes.InvalidArgument, "reservation_id must be a UUID")
	}

	if err := s.svc.CancelReservation(ctx, providerID, id); err != nil {
		return nil, s.statusError(log, err, "reservation cancel failed", slog.String("reservation_id", id.String()), slog.String("provider_id", providerID))
	}

	log.Info("reservation cancelled", slog.String("reservation_id", id.String()), slog.String("provider_id", providerID))
	return respond(log, map[string]any{})
}

func (s *AvailabilityServer) statusError(log *slog.Logger, err error, msg string, attrs ...any) error {
	var vErr *providers.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", attrs...)
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		log.Info("reservation conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "That time is already booked. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different reservation. Try again.")
	case errors.Is(err, lock.ErrNotAcquired):
		log.Info("provider day busy", attrs...)
		return status.Error(codes.Aborted, "Another booking for this day is in progress. Try again.")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", attrs...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	default:
		log.Error(msg, append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.Internal, "internal error")
	}
}

func respond(log *slog.Logger, v map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(v)
	if err != nil {
		log.Error("response encoding failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func stringField(req *structpb.Struct, key string) string {
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

// intField truncates numeric fields; out of range values become 0 and are
// rejected by the service.
func intField(req *structpb.Struct, key string) int {
	v, ok := req.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(v.NumberValue) || math.Abs(v.NumberValue) > math.MaxInt32 {
		return 0
	}
	return int(v.NumberValue)
}

func numberField(req *structpb.Struct, key string) *float64 {
	v, ok := req.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}
	n := v.NumberValue
	return &n
}

func summaryRecord(p domain.ProviderSummary) map[string]any {
	cities := make([]any, 0, len(p.Cities))
	for _, c := range p.Cities {
		cities = append(cities, c)
	}
	rec := map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"category":   p.Category,
		"cities":     cities,
		"city_label": p.CityLabel,
	}
	if p.MinPrice != nil {
		rec["min_price"] = *p.MinPrice
		rec["price_label"] = p.PriceLabel
	}
	return rec
}

func reservationRecord(r domain.Reservation) map[string]any {
	return map[string]any{
		"id":          r.ID.String(),
		"provider_id": r.ProviderID,
		"client_id":   r.ClientID,
		"date":        r.Day,
		"start_time":  r.StartTime,
		"end_time":    r.EndTime,
		"status":      string(r.Status),
		"created_at":  r.CreatedAt.UTC().Format(timeLayout),
		"updated_at":  r.UpdatedAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
