package firestoredb

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	providersCollection    = "providers"
	reservationsCollection = "reservations"
)

type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Store wraps the Firestore client of a Firebase app. Provider documents are
// the records written by the marketplace apps; reservations live in their own
// collection keyed by reservation id.
type Store struct {
	client *firestore.Client
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Providers() *ProviderRepo {
	return &ProviderRepo{client: s.client}
}

func (s *Store) Reservations() *ReservationRepo {
	return &ReservationRepo{client: s.client}
}

// Ping reads at most one provider document.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	it := s.client.Collection(providersCollection).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
