package ports

import (
	"context"

	"torrentplay/internal/domain"
)

type SearchProvider interface {
	Name() string
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)
}
