package usecase

import (
	"torrentplay/internal/domain"
	"torrentplay/internal/services/catalog"
)

type ListDownloads struct {
	Catalog catalog.Catalog
}

func (uc ListDownloads) Execute() ([]domain.CompletedEntry, error) {
	return uc.Catalog.List()
}
