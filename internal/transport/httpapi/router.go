package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"evently/backend/internal/domain"
	"evently/backend/internal/service/providers"
)

type ProviderService interface {
	GetProvider(ctx context.Context, id string) (domain.Provider, error)
	SaveProvider(ctx context.Context, in providers.SaveProviderInput) (domain.Provider, error)
	GetAvailability(ctx context.Context, providerID string) (*domain.AvailabilityMeta, error)
	CheckBookable(ctx context.Context, providerID, start, end string) (bool, error)
	ListSlots(ctx context.Context, in providers.ListSlotsInput) ([]domain.TimeSlot, error)
	SearchProviders(ctx context.Context, in providers.SearchInput) ([]domain.ProviderSummary, error)
	CreateReservation(ctx context.Context, in providers.CreateReservationInput) (domain.Reservation, error)
	ListReservations(ctx context.Context, providerID, date string) ([]domain.Reservation, error)
	CancelReservation(ctx context.Context, providerID string, reservationID uuid.UUID) error
}

type RouterConfig struct {
	Service ProviderService
	Health  *HealthHandler
	Log     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler("")
	}
	h := &handlers{svc: cfg.Service, log: log.With(slog.String("component", "http.providers"))}

	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(WithAccessLog(log.With(slog.String("component", "http.access"))))

	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/v1/providers", func(r chi.Router) {
		r.Get("/", h.searchProviders)
		r.Route("/{providerID}", func(r chi.Router) {
			r.Get("/", h.getProvider)
			r.Put("/", h.saveProvider)
			r.Get("/availability", h.getAvailability)
			r.Get("/bookable", h.checkBookable)
			r.Get("/slots", h.listSlots)
			r.Get("/reservations", h.listReservations)
			r.Post("/reservations", h.createReservation)
			r.Delete("/reservations/{reservationID}", h.cancelReservation)
		})
	})

	return otelhttp.NewHandler(r, "evently.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
