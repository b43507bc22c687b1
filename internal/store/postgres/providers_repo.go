package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"evently/backend/internal/domain"
	"evently/backend/internal/store"
)

type ProviderRepo struct {
	db bun.IDB
}

func NewProviderRepo(db bun.IDB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

func (r *ProviderRepo) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Provider{}, store.ErrNotFound
		}
		return domain.Provider{}, err
	}
	return p, nil
}

func (r *ProviderRepo) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	var rows []domain.Provider
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("name ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProviderRepo) SaveProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	m := domain.Provider{
		ID:   p.ID,
		Name: p.Name,
		Data: p.Data,
	}

	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Provider{}, err
	}
	return m, nil
}
