package parser

import (
	"context"
	"log/slog"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/scanner"
)

// StrategySource reads every feed endpoint of a source through its registered scanner.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.Default()
	}
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// FetchEntries walks the source's feed URLs sequentially. A failing endpoint is logged
// and skipped; the error is returned only when the strategy itself cannot be resolved.
func (s *StrategySource) FetchEntries(ctx context.Context, source domain.Source) ([]domain.FeedEntry, error) {
	strategy, err := s.registry.Resolve(source.StrategyName())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("process source", "source", source.Name, "scanner", strategy.Name(), "feeds", len(source.FeedURLs))

	var aggregated []domain.FeedEntry
	for _, feedURL := range source.FeedURLs {
		entries, err := strategy.Scan(ctx, scanner.Request{
			SourceID:   source.ID,
			SourceName: source.Name,
			FeedURL:    feedURL,
		})
		if err != nil {
			s.logger.Error("feed failed", "source", source.Name, "feed", feedURL, "error", err)
			continue
		}
		s.logger.Debug("feed produced entries", "source", source.Name, "feed", feedURL, "count", len(entries))
		aggregated = append(aggregated, entries...)
	}

	return aggregated, nil
}
