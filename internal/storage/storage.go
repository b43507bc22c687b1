package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"evently/backend/internal/config"
	"evently/backend/internal/store"
	"evently/backend/internal/store/firestoredb"
	"evently/backend/internal/store/postgres"
)

// Backend is an opened store: its repositories plus the hooks the server needs
// for readiness and shutdown.
type Backend struct {
	Driver       string
	Providers    store.ProviderRepository
	Reservations store.ReservationRepository

	ping  func(ctx context.Context) error
	close func() error
}

// NewBackend assembles a Backend from repositories and their lifecycle hooks.
func NewBackend(driver string, providers store.ProviderRepository, reservations store.ReservationRepository, ping func(ctx context.Context) error, closer func() error) *Backend {
	return &Backend{
		Driver:       driver,
		Providers:    providers,
		Reservations: reservations,
		ping:         ping,
		close:        closer,
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

func (b *Backend) Close() error {
	return b.close()
}

func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		log.Info("connecting to database", DatabaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return NewBackend(cfg.StoreDriver,
			postgres.NewProviderRepo(db),
			postgres.NewReservationRepo(db),
			func(ctx context.Context) error { return postgres.Ping(ctx, db) },
			func() error { return postgres.Close(db) },
		), nil

	case config.StoreDriverFirestore:
		log.Info("connecting to firestore", slog.String("project_id", cfg.FirestoreProjectID))
		fs, err := firestoredb.Open(ctx, firestoredb.Config{
			ProjectID:       cfg.FirestoreProjectID,
			CredentialsFile: cfg.FirestoreCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return NewBackend(cfg.StoreDriver, fs.Providers(), fs.Reservations(), fs.Ping, fs.Close), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// DatabaseLogArgs describes a database URL without its credentials.
func DatabaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
