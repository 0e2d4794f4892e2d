package ports

import (
	"context"

	"torrentplay/internal/domain"
)

// TransferEngine turns content locators into running transfers.
type TransferEngine interface {
	// Identify derives the content id of locator without starting anything.
	Identify(locator string) (domain.ContentID, error)
	AddTransfer(ctx context.Context, locator string) (Transfer, error)
	Close() error
}

// Transfer is a handle to one running transfer. The engine owns its lifecycle.
type Transfer interface {
	ID() domain.ContentID
	Name() string
	// Files blocks until metadata is available or ctx is done.
	Files(ctx context.Context) ([]domain.FileRef, error)
	Progress() domain.Progress
	// ReadRange copies bytes of file fileIndex starting at off into p. It
	// returns domain.ErrRangePending without blocking when the first byte at
	// off is not downloaded yet, and may return fewer bytes than len(p) when
	// only a prefix is available.
	ReadRange(ctx context.Context, fileIndex int, off int64, p []byte) (int, error)
	Remove() error
}
