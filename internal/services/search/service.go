// Package search fans a query out to the configured providers and caches
// the merged result.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/metrics"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultCacheTTL = 10 * time.Minute
	defaultLimit    = 50
)

var ErrNoProviders = errors.New("no search providers configured")

type Service struct {
	providers []ports.SearchProvider
	timeout   time.Duration
	cacheTTL  time.Duration
	cache     Cache
	retry     RetryConfig
	logger    *slog.Logger
}

type ServiceOption func(*Service)

func WithCache(cache Cache) ServiceOption {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithRetry(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(providers []ports.SearchProvider, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	live := make([]ports.SearchProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			live = append(live, p)
		}
	}
	s := &Service{
		providers: live,
		timeout:   timeout,
		cacheTTL:  defaultCacheTTL,
		cache:     NewMemoryCache(256),
		retry:     DefaultRetryConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns results of all providers merged by info hash and ordered
// by seeders. It fails with domain.ErrNoResults when every provider answered
// with nothing and with domain.ErrUpstreamUnavailable when all of them failed.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ErrNoProviders)
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	key := cacheKey(req)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("search cache read failed", slog.String("error", err.Error()))
	} else if ok {
		metrics.SearchCacheHitsTotal.Inc()
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		merged   []domain.SearchResult
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.providers {
		g.Go(func() error {
			var results []domain.SearchResult
			err := RetryWithBackoff(gctx, s.retry, func() error {
				var err error
				results, err = p.Search(gctx, req)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.SearchRequestsTotal.WithLabelValues(p.Name(), "error").Inc()
				s.logger.Warn("search provider failed",
					slog.String("provider", p.Name()),
					slog.String("error", err.Error()),
				)
				failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
				return nil
			}
			metrics.SearchRequestsTotal.WithLabelValues(p.Name(), "ok").Inc()
			merged = append(merged, results...)
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == len(s.providers) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, errors.Join(failures...))
	}

	results := dedupe(merged)
	if len(results) == 0 {
		return nil, domain.ErrNoResults
	}
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	if err := s.cache.Set(context.WithoutCancel(ctx), key, results, s.cacheTTL); err != nil {
		s.logger.Warn("search cache write failed", slog.String("error", err.Error()))
	}
	return results, nil
}

func cacheKey(req domain.SearchRequest) string {
	query := strings.ToLower(strings.Join(strings.Fields(req.Query), " "))
	return fmt.Sprintf("%s|%d", query, req.Limit)
}

// dedupe keeps the best seeded entry per locator and sorts by seeders.
func dedupe(items []domain.SearchResult) []domain.SearchResult {
	best := make(map[string]domain.SearchResult, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(infoHashOf(item.Locator))
		if key == "" {
			continue
		}
		prev, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = item
			continue
		}
		if item.Seeders > prev.Seeders {
			best[key] = item
		}
	}
	out := make([]domain.SearchResult, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seeders > out[j].Seeders
	})
	return out
}

func infoHashOf(locator string) string {
	lower := strings.ToLower(locator)
	idx := strings.Index(lower, "urn:btih:")
	if idx < 0 {
		return strings.TrimSpace(locator)
	}
	rest := locator[idx+len("urn:btih:"):]
	if end := strings.IndexAny(rest, "&"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
