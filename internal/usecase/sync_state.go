package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/metrics"
	"torrentplay/internal/services/session"
)

type ProgressPublisher interface {
	PublishProgress(views []TransferView)
}

// SyncState periodically mirrors session progress into the history
// repository, the metrics gauges and progress subscribers.
type SyncState struct {
	Sessions  *session.Registry
	Repo      ports.TransferRepository
	Publisher ProgressPublisher
	Storage   *StorageUsage
	Logger    *slog.Logger
	Interval  time.Duration

	synced map[domain.ContentID]int64
}

func (s *SyncState) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

func (s *SyncState) sync(ctx context.Context) {
	views := ListTransfers{Sessions: s.Sessions}.Execute()

	var completed int
	var downloaded int64
	for _, v := range views {
		downloaded += v.Bytes.BytesCompleted
		if v.Progress.Complete {
			completed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(views)))
	metrics.CompletedSessions.Set(float64(completed))
	metrics.DownloadedBytes.Set(float64(downloaded))

	if s.Storage != nil {
		if stats, err := s.Storage.Execute(ctx); err == nil {
			metrics.StorageFreeBytes.Set(float64(stats.FreeBytes))
		}
	}

	if s.Repo != nil {
		s.persist(ctx, views)
	}
	if s.Publisher != nil {
		s.Publisher.PublishProgress(views)
	}
}

func (s *SyncState) persist(ctx context.Context, views []TransferView) {
	if s.synced == nil {
		s.synced = make(map[domain.ContentID]int64)
	}
	seen := make(map[domain.ContentID]struct{}, len(views))
	for _, v := range views {
		seen[v.ID] = struct{}{}
		// Records are created once a file is selected.
		if v.FileName == "" {
			continue
		}
		if last, ok := s.synced[v.ID]; ok && last >= v.Bytes.BytesCompleted {
			continue
		}
		err := s.Repo.UpdateProgress(ctx, v.ID, domain.ProgressUpdate{
			BytesCompleted: v.Bytes.BytesCompleted,
			Length:         v.Bytes.Length,
			Completed:      v.Progress.Complete,
		})
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger().Warn("sync: update progress failed",
					slog.String("id", string(v.ID)),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		s.synced[v.ID] = v.Bytes.BytesCompleted
	}
	for id := range s.synced {
		if _, ok := seen[id]; !ok {
			delete(s.synced, id)
		}
	}
}

func (s *SyncState) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
