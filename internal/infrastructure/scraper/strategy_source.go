package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
	"github.com/Haik11kashiyani/news-auto/internal/scanner"
)

// StrategySource implements NewsSource via registered scanner strategies,
// aggregating across the configured sites.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchBatch iterates over configured sites and executes their scanners. A
// failing site fails the batch; partial batches would silently shrink dedup
// coverage.
func (s *StrategySource) FetchBatch(ctx context.Context, maxItems int) ([]domain.NewsItem, error) {
	if s.registry == nil {
		return nil, domain.PermanentStage("fetched", fmt.Errorf("scanner registry is not configured"))
	}

	s.debug("fetch batch", "sites", len(s.sites), "max_items", maxItems)

	var aggregated []domain.NewsItem
	for _, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, domain.PermanentStage("fetched", fmt.Errorf("site %s: %w", site.Name, err))
		}

		remaining := 0
		if maxItems > 0 {
			remaining = maxItems - len(aggregated)
			if remaining <= 0 {
				break
			}
		}

		results, err := strategy.Scan(ctx, scanner.Request{
			SiteName:  site.Name,
			URL:       site.URL,
			MaxItems:  remaining,
			Selectors: site.Selectors,
		})
		if err != nil {
			return nil, domain.TransientStage("fetched", fmt.Errorf("scan site %s: %w", site.Name, err))
		}

		s.debug("site produced items", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_items", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
