package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime/debug"
	"sync/atomic"

	"github.com/anacrolix/torrent"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
)

type Transfer struct {
	engine *Engine
	t      *torrent.Torrent
	id     domain.ContentID

	// peak is a high-water mark: BytesCompleted can dip while pieces are
	// rehashed.
	peak    atomic.Int64
	removed atomic.Bool
}

var _ ports.Transfer = (*Transfer)(nil)

func (tr *Transfer) ID() domain.ContentID { return tr.id }

func (tr *Transfer) Name() string {
	return tr.t.Name()
}

func (tr *Transfer) Files(ctx context.Context) ([]domain.FileRef, error) {
	select {
	case <-tr.t.GotInfo():
		return mapFiles(tr.t), nil
	case <-tr.t.Closed():
		return nil, errors.New("transfer closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tr *Transfer) Progress() domain.Progress {
	if !torrentInfoReady(tr.t) {
		return domain.Progress{}
	}
	completed := tr.t.BytesCompleted()
	for {
		peak := tr.peak.Load()
		if completed <= peak {
			completed = peak
			break
		}
		if tr.peak.CompareAndSwap(peak, completed) {
			break
		}
	}
	return domain.Progress{BytesCompleted: completed, Length: tr.t.Length()}
}

// ReadRange serves bytes only from verified pieces. A missing first piece is
// raised in priority and reported as domain.ErrRangePending.
func (tr *Transfer) ReadRange(ctx context.Context, fileIndex int, off int64, p []byte) (int, error) {
	if tr.removed.Load() {
		return 0, domain.ErrSessionEvicted
	}
	if !torrentInfoReady(tr.t) {
		return 0, domain.ErrRangePending
	}
	files := tr.t.Files()
	if fileIndex < 0 || fileIndex >= len(files) {
		return 0, fmt.Errorf("%w: file index %d", domain.ErrNotFound, fileIndex)
	}
	f := files[fileIndex]
	if off >= f.Length() {
		return 0, io.EOF
	}
	want := int64(len(p))
	if rem := f.Length() - off; want > rem {
		want = rem
	}

	pieceLen := tr.t.Info().PieceLength
	numPieces := tr.t.NumPieces()
	avail := completePrefix(f.Offset(), off, want, pieceLen, numPieces, func(i int) bool {
		return tr.t.PieceState(i).Complete
	})
	if avail == 0 {
		lastPiece := pieceIndex(f.Offset(), f.Length()-1, pieceLen)
		prioritizeFrom(tr.t, pieceIndex(f.Offset(), off, pieceLen), tr.engine.readahead, lastPiece)
		return 0, domain.ErrRangePending
	}

	r := f.NewReader()
	defer r.Close()
	r.SetContext(ctx)
	r.SetResponsive()
	r.SetReadahead(0)
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(r, p[:avail])
	if err != nil && ctx.Err() != nil {
		return n, ctx.Err()
	}
	return n, err
}

func (tr *Transfer) Remove() error {
	if !tr.removed.CompareAndSwap(false, true) {
		return nil
	}
	tr.engine.forget(tr.id)
	tr.t.Drop()
	return nil
}

// downloadWhenReady queues the whole torrent once metadata arrives.
func (tr *Transfer) downloadWhenReady() {
	select {
	case <-tr.t.GotInfo():
		tr.t.DownloadAll()
	case <-tr.t.Closed():
	}
}

func mapFiles(t *torrent.Torrent) (mapped []domain.FileRef) {
	if !torrentInfoReady(t) {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("mapFiles panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
			mapped = nil
		}
	}()

	files := t.Files()
	info := t.Info()
	names := flatNames(info.Name, infoPaths(info))
	mapped = make([]domain.FileRef, 0, len(files))
	for i, f := range files {
		name := path.Base(f.DisplayPath())
		if len(names) == len(files) {
			name = names[i]
		}
		mapped = append(mapped, domain.FileRef{
			Index:  i,
			Name:   name,
			Path:   f.DisplayPath(),
			Length: f.Length(),
		})
	}
	return mapped
}

func torrentInfoReady(t *torrent.Torrent) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}
