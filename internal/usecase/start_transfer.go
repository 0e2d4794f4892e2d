package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/services/media"
	"torrentplay/internal/services/session"
)

const defaultMetadataTimeout = 60 * time.Second

// StartTransfer registers (or attaches to) the transfer behind a locator and
// picks its playable file.
type StartTransfer struct {
	Sessions        *session.Registry
	Selector        media.Selector
	Repo            ports.TransferRepository
	Logger          *slog.Logger
	MetadataTimeout time.Duration
	Now             func() time.Time
}

type StartResult struct {
	Session  domain.Session
	File     domain.FileRef
	Progress domain.ProgressSnapshot
}

func (uc StartTransfer) Execute(ctx context.Context, locator string) (StartResult, error) {
	sess, err := uc.Sessions.StartOrAttach(ctx, locator)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return StartResult{}, err
		}
		return StartResult{}, wrapEngine(err)
	}

	h, err := uc.Sessions.Handle(sess.ID)
	if err != nil {
		// Evicted concurrently.
		return StartResult{}, err
	}

	if h.Session.SelectedFile != nil {
		return StartResult{
			Session:  h.Session,
			File:     *h.Session.SelectedFile,
			Progress: h.Transfer.Progress().Snapshot(),
		}, nil
	}

	timeout := uc.MetadataTimeout
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	metaCtx, cancel := context.WithTimeout(ctx, timeout)
	files, err := h.Transfer.Files(metaCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StartResult{}, wrapEngine(fmt.Errorf("metadata not received within %s", timeout))
		}
		return StartResult{}, wrapEngine(err)
	}

	file, err := uc.Selector.SelectPlayable(files)
	if err != nil {
		uc.logger().Info("transfer has no playable file, evicting",
			slog.String("id", string(sess.ID)),
			slog.Int("files", len(files)),
		)
		if evictErr := uc.Sessions.Evict(context.WithoutCancel(ctx), sess.ID); evictErr != nil && !errors.Is(evictErr, domain.ErrNotFound) {
			uc.logger().Warn("evict after no playable file failed",
				slog.String("id", string(sess.ID)),
				slog.String("error", evictErr.Error()),
			)
		}
		return StartResult{}, err
	}

	sess, err = uc.Sessions.SetSelectedFile(sess.ID, file)
	if err != nil {
		return StartResult{}, err
	}

	progress := h.Transfer.Progress()
	uc.record(ctx, sess, file, progress)

	return StartResult{Session: sess, File: file, Progress: progress.Snapshot()}, nil
}

// record persists the transfer history. Failures are logged: history is
// optional and must not block playback.
func (uc StartTransfer) record(ctx context.Context, sess domain.Session, file domain.FileRef, progress domain.Progress) {
	if uc.Repo == nil {
		return
	}
	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	ts := now().UTC()
	rec := domain.TransferRecord{
		ID:             sess.ID,
		Locator:        sess.Locator,
		Name:           sess.Name,
		FileName:       file.Name,
		Length:         progress.Length,
		BytesCompleted: progress.BytesCompleted,
		Completed:      progress.Complete(),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if err := uc.Repo.Upsert(ctx, rec); err != nil {
		uc.logger().Warn("persist transfer record failed",
			slog.String("id", string(sess.ID)),
			slog.String("error", wrapRepo(err).Error()),
		)
	}
}

func (uc StartTransfer) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
