package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"HeadlineRadar/internal/config"
	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
	"HeadlineRadar/internal/scanner"
)

// StrategySource implements PlatformSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	platforms   []config.PlatformConfig
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

var _ ports.PlatformSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined platforms.
func NewStrategySource(reg *scanner.Registry, platforms []config.PlatformConfig, fetch config.FetchConfig, log *slog.Logger) *StrategySource {
	concurrency := fetch.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		platforms:   platforms,
		concurrency: concurrency,
		timeout:     fetch.Timeout,
		logger:      log,
	}
}

// FetchCycle polls every platform concurrently. A platform that fails is
// reported through PlatformResult.Err and never fails the cycle; only
// cancellation of ctx abandons it.
func (s *StrategySource) FetchCycle(ctx context.Context, at time.Time) (domain.Cycle, error) {
	if s.registry == nil {
		return domain.Cycle{}, errors.New("scanner registry is not configured")
	}

	s.debug("fetch cycle", "platforms", len(s.platforms), "at", at.Format(time.RFC3339))

	results := make([]domain.PlatformResult, len(s.platforms))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, platform := range s.platforms {
		i, platform := i, platform
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.fetchPlatform(ctx, platform, at)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Cycle{}, fmt.Errorf("fetch platforms: %w", err)
	}

	total := 0
	for _, r := range results {
		total += len(r.Items)
	}
	s.debug("strategy source done", "total_items", total)

	return domain.Cycle{At: at, Results: results}, nil
}

func (s *StrategySource) fetchPlatform(ctx context.Context, platform config.PlatformConfig, at time.Time) domain.PlatformResult {
	result := domain.PlatformResult{PlatformID: platform.ID, Name: platform.DisplayName()}

	strategy, err := s.registry.Resolve(platform.Fetcher)
	if err != nil {
		result.Err = fmt.Errorf("platform %s: %w", platform.ID, err)
		return result
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	items, err := strategy.Scan(ctx, scanner.Request{
		At:         at,
		PlatformID: platform.ID,
		Name:       result.Name,
		URL:        platform.URL,
		Options:    platform.Options,
	})
	if err != nil {
		s.warn("platform fetch failed", "platform", platform.ID, "scanner", platform.Fetcher, "error", err)
		result.Err = fmt.Errorf("scan platform %s: %w", platform.ID, err)
		return result
	}

	result.Items = items
	s.debug("platform produced items", "platform", platform.ID, "count", len(items))
	return result
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
