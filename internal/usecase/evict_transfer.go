package usecase

import (
	"context"
	"errors"
	"log/slog"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/metrics"
	"torrentplay/internal/services/session"
)

// EvictTransfer removes a session. In-flight streams end with
// domain.ErrSessionEvicted. Completed files stay in the download catalog.
type EvictTransfer struct {
	Sessions *session.Registry
	Repo     ports.TransferRepository
	Logger   *slog.Logger
}

func (uc EvictTransfer) Execute(ctx context.Context, id domain.ContentID) error {
	h, err := uc.Sessions.Handle(id)
	if err != nil {
		return err
	}
	complete := h.Transfer.Progress().Complete()

	if err := uc.Sessions.Evict(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return wrapEngine(err)
	}
	metrics.SessionEvictionsTotal.Inc()

	// An evicted unfinished transfer must not come back on restart.
	if uc.Repo != nil && !complete {
		if err := uc.Repo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger := uc.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("delete transfer record failed",
				slog.String("id", string(id)),
				slog.String("error", wrapRepo(err).Error()),
			)
		}
	}
	return nil
}
