package app

import (
	"context"
	"fmt"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
)

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Categories int
	Sources    int
}

// Seed upserts the configured categories, then the sources that reference them by key.
// Running it again refreshes existing rows in place.
func (a *Application) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	byKey := make(map[string]domain.Category, len(a.cfg.Seed.Categories))

	for _, c := range a.cfg.Seed.Categories {
		stored, err := a.store.UpsertCategory(ctx, domain.Category{
			Key:   c.Key,
			Label: c.Label,
			Icon:  c.Icon,
			Color: c.Color,
			Order: c.Order,
		})
		if err != nil {
			return res, err
		}
		byKey[stored.Key] = stored
		res.Categories++
	}

	for _, s := range a.cfg.Seed.Sources {
		src, err := sourceFromSeed(s, byKey)
		if err != nil {
			return res, err
		}
		if _, err := a.store.UpsertSource(ctx, src); err != nil {
			return res, err
		}
		res.Sources++
	}

	a.logger.Info("seed applied", "categories", res.Categories, "sources", res.Sources)
	return res, nil
}

func sourceFromSeed(s config.SourceSeed, byKey map[string]domain.Category) (domain.Source, error) {
	categories := make([]domain.Category, 0, len(s.Categories))
	for _, key := range s.Categories {
		c, ok := byKey[key]
		if !ok {
			return domain.Source{}, fmt.Errorf("source %s: unknown category %q", s.Name, key)
		}
		categories = append(categories, c)
	}
	lang := s.Lang
	if lang == "" {
		lang = "en"
	}
	return domain.Source{
		Name:       s.Name,
		URL:        s.URL,
		FeedURLs:   s.FeedURLs,
		Lang:       lang,
		Categories: categories,
		Active:     s.IsActive(),
		Strategy:   s.Strategy,
	}, nil
}
