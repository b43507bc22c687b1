package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Provider stores a marketplace provider as its raw document. The document is
// loosely typed and only interpreted through the normalizing accessors below.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID        string         `bun:"id,pk"`
	Name      string         `bun:"name,notnull"`
	Data      map[string]any `bun:"data,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull"`
	UpdatedAt time.Time      `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			p.ID = id.String()
		}
		if p.Data == nil {
			p.Data = map[string]any{}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

func (p Provider) Availability() *AvailabilityMeta {
	return NormalizeAvailabilityMeta(p.Data["availability"])
}

func (p Provider) Cities() []string {
	return NormalizeCities(p.Data["cities"], p.Data["city"])
}

func (p Provider) Category() string {
	s, _ := p.Data["category"].(string)
	return strings.TrimSpace(s)
}

// MinPrice prefers the cheapest service and falls back to the display price.
func (p Provider) MinPrice() (float64, bool) {
	display := p.Data["price"]
	if display == nil {
		display = p.Data["pricing"]
	}
	return MinServicePrice(p.Data["services"], display)
}

type ProviderSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Cities     []string `json:"cities"`
	CityLabel  string   `json:"cityLabel"`
	MinPrice   *float64 `json:"minPrice,omitempty"`
	PriceLabel string   `json:"priceLabel,omitempty"`
}

func (p Provider) Summary() ProviderSummary {
	cities := p.Cities()
	out := ProviderSummary{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category(),
		Cities:    cities,
		CityLabel: JoinCities(cities),
	}
	if price, ok := p.MinPrice(); ok {
		out.MinPrice = &price
		out.PriceLabel = FormatPrice(price)
	}
	return out
}

// SortSummaries orders summaries by name, then id.
func SortSummaries(items []ProviderSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}
