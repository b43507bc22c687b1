package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"evently/backend/internal/config"
	"evently/backend/internal/domain"
	"evently/backend/internal/service/providers"
	"evently/backend/internal/storage"
)

var (
	categories = []string{"photographe", "dj", "traiteur", "fleuriste", "décorateur", "vidéaste", "wedding planner"}
	cities     = []string{"Paris", "Lyon", "Marseille", "Bordeaux", "Lille", "Nantes", "Toulouse", "Nice", "Strasbourg", "Rennes"}
	openings   = []string{"08:00", "09:00", "10:00", "14:00"}
)

func main() {
	count := flag.Int("count", 50, "number of providers to generate")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("service", "evently-seed"))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("store open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer backend.Close()

	svc := providers.NewService(backend.Providers, backend.Reservations, nil, providers.Options{})
	faker := gofakeit.New(*seed)
	today := time.Now().UTC()

	log.Info("seeding providers", slog.Int("count", *count), slog.String("store_driver", backend.Driver))
	for i := 0; i < *count; i++ {
		p, err := svc.SaveProvider(ctx, fakeProvider(faker, today))
		if err != nil {
			log.Error("provider save failed", slog.Any("err", err), slog.Int("index", i))
			os.Exit(1)
		}
		log.Debug("provider saved", slog.String("provider_id", p.ID))
	}
	log.Info("seed complete", slog.Int("count", *count))
}

// fakeProvider builds a provider document in the shape the marketplace apps
// write: weekly schedule, blocked dates and ranges near today, cities and a
// service list with mixed numeric and textual prices.
func fakeProvider(f *gofakeit.Faker, today time.Time) providers.SaveProviderInput {
	weekly := make(map[string]any, len(domain.WeekdayKeys))
	for _, key := range domain.WeekdayKeys {
		open := f.RandomString(openings)
		start := domain.ParseClock(open)
		length := f.Number(2, 8) * 60
		weekly[key] = map[string]any{
			"active": f.Number(0, 9) < 7,
			"slots": []any{
				map[string]any{"start": open, "end": domain.FormatClock(start + length)},
			},
		}
	}

	blockedDates := make([]any, 0, 3)
	for i := f.Number(0, 3); i > 0; i-- {
		blockedDates = append(blockedDates, domain.FormatISODate(today.AddDate(0, 0, f.Number(1, 90))))
	}

	blockedRanges := make([]any, 0, 1)
	if f.Bool() {
		from := today.AddDate(0, 0, f.Number(7, 120))
		blockedRanges = append(blockedRanges, map[string]any{
			"start": domain.FormatISODate(from),
			"end":   domain.FormatISODate(from.AddDate(0, 0, f.Number(1, 14))),
		})
	}

	served := make([]any, 0, 3)
	for i := f.Number(1, 3); i > 0; i-- {
		served = append(served, f.RandomString(cities))
	}

	services := make([]any, 0, 4)
	for i := f.Number(1, 4); i > 0; i-- {
		price := float64(f.Number(8, 60) * 25)
		var priceFrom any = price
		if f.Bool() {
			priceFrom = "à partir de " + domain.FormatPrice(price)
		}
		services = append(services, map[string]any{
			"name":      f.Word(),
			"priceFrom": priceFrom,
		})
	}

	name := f.Company()
	return providers.SaveProviderInput{
		ID:   uuid.NewString(),
		Name: name,
		Data: map[string]any{
			"name":        name,
			"category":    f.RandomString(categories),
			"cities":      served,
			"city":        fmt.Sprint(served[0]),
			"services":    services,
			"description": f.Sentence(12),
			"availability": map[string]any{
				"weekly":        weekly,
				"blockedDates":  blockedDates,
				"blockedRanges": blockedRanges,
			},
		},
	}
}
