package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"torrentplay/internal/domain"
)

type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)
}

type SearchMedia struct {
	Search     Searcher
	MaxResults int
}

// Execute runs a free-text search. No results is an empty list, provider
// failures are reported as domain.ErrUpstreamUnavailable.
func (uc SearchMedia) Execute(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if uc.Search == nil {
		return nil, fmt.Errorf("%w: search not configured", domain.ErrUpstreamUnavailable)
	}

	results, err := uc.Search.Search(ctx, domain.SearchRequest{Query: query, Limit: uc.MaxResults})
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			return []domain.SearchResult{}, nil
		}
		if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if uc.MaxResults > 0 && len(results) > uc.MaxResults {
		results = results[:uc.MaxResults]
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}
