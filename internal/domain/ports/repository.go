package ports

import (
	"context"

	"torrentplay/internal/domain"
)

type TransferRepository interface {
	Upsert(ctx context.Context, r domain.TransferRecord) error
	UpdateProgress(ctx context.Context, id domain.ContentID, update domain.ProgressUpdate) error
	Get(ctx context.Context, id domain.ContentID) (domain.TransferRecord, error)
	ListIncomplete(ctx context.Context) ([]domain.TransferRecord, error)
	Delete(ctx context.Context, id domain.ContentID) error
}
