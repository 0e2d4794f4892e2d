package usecase

import (
	"context"
	"log/slog"
	"sync"

	"torrentplay/internal/domain/ports"
)

// RestoreSessions restarts transfers that were unfinished when the process
// stopped. Registration is synchronous; file selection waits for metadata in
// the background.
type RestoreSessions struct {
	Repo   ports.TransferRepository
	Start  StartTransfer
	Logger *slog.Logger
}

// Execute returns the number of restored sessions and a WaitGroup that is
// done when every background file selection has finished.
func (uc RestoreSessions) Execute(ctx context.Context) (int, *sync.WaitGroup, error) {
	var wg sync.WaitGroup
	records, err := uc.Repo.ListIncomplete(ctx)
	if err != nil {
		return 0, &wg, wrapRepo(err)
	}

	logger := uc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	restored := 0
	for _, rec := range records {
		if _, err := uc.Start.Sessions.StartOrAttach(ctx, rec.Locator); err != nil {
			logger.Warn("restore session failed",
				slog.String("id", string(rec.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		restored++

		wg.Add(1)
		go func(locator, id string) {
			defer wg.Done()
			if _, err := uc.Start.Execute(ctx, locator); err != nil {
				logger.Warn("restore file selection failed",
					slog.String("id", id),
					slog.String("error", err.Error()),
				)
			}
		}(rec.Locator, string(rec.ID))
	}
	return restored, &wg, nil
}
