package firestoredb

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"evently/backend/internal/domain"
	"evently/backend/internal/store"
)

type ProviderRepo struct {
	client *firestore.Client
}

func (r *ProviderRepo) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	snap, err := r.client.Collection(providersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Provider{}, store.ErrNotFound
		}
		return domain.Provider{}, err
	}
	return providerFromDocument(snap.Ref.ID, snap.Data(), snap.CreateTime, snap.UpdateTime), nil
}

func (r *ProviderRepo) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	it := r.client.Collection(providersCollection).Documents(ctx)
	defer it.Stop()

	out := make([]domain.Provider, 0, 32)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, providerFromDocument(snap.Ref.ID, snap.Data(), snap.CreateTime, snap.UpdateTime))
	}
	return out, nil
}

// SaveProvider replaces the whole document; the display name is kept in the
// document's "name" field as the mobile apps expect.
func (r *ProviderRepo) SaveProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	ref := r.client.Collection(providersCollection).NewDoc()
	if p.ID != "" {
		ref = r.client.Collection(providersCollection).Doc(p.ID)
	}

	data := providerDocument(p)
	res, err := ref.Set(ctx, data)
	if err != nil {
		return domain.Provider{}, err
	}

	p.ID = ref.ID
	p.Data = data
	p.UpdatedAt = res.UpdateTime
	if p.CreatedAt.IsZero() {
		p.CreatedAt = res.UpdateTime
	}
	return p, nil
}

func providerFromDocument(id string, data map[string]any, created, updated time.Time) domain.Provider {
	if data == nil {
		data = map[string]any{}
	}
	name, _ := data["name"].(string)
	return domain.Provider{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Data:      data,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func providerDocument(p domain.Provider) map[string]any {
	data := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	data["name"] = p.Name
	return data
}
