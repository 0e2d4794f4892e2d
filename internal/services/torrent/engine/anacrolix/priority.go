package anacrolix

import (
	"log/slog"

	"github.com/anacrolix/torrent"
)

const defaultReadaheadPieces = 8

// completePrefix returns how many bytes starting at off (relative to a file
// that begins at fileOffset inside the torrent) are covered by consecutive
// complete pieces, capped at want.
func completePrefix(fileOffset, off, want, pieceLen int64, numPieces int, complete func(int) bool) int64 {
	if want <= 0 || pieceLen <= 0 {
		return 0
	}
	abs := fileOffset + off
	end := abs + want
	covered := abs
	for i := abs / pieceLen; i < int64(numPieces) && covered < end; i++ {
		if !complete(int(i)) {
			break
		}
		pieceEnd := (i + 1) * pieceLen
		if pieceEnd > end {
			pieceEnd = end
		}
		covered = pieceEnd
	}
	return covered - abs
}

// pieceIndex returns the piece holding byte off of a file at fileOffset.
func pieceIndex(fileOffset, off, pieceLen int64) int {
	if pieceLen <= 0 {
		return 0
	}
	return int((fileOffset + off) / pieceLen)
}

// prioritizeFrom asks the client to fetch piece first right away and the
// following pieces of the file soon after.
func prioritizeFrom(t *torrent.Torrent, first, count, lastPiece int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("prioritizeFrom recovered from panic", slog.Any("panic", rec))
		}
	}()
	for i := first; i <= lastPiece && i < first+count; i++ {
		if t.PieceState(i).Complete {
			continue
		}
		prio := torrent.PiecePriorityReadahead
		switch {
		case i == first:
			prio = torrent.PiecePriorityNow
		case i == first+1:
			prio = torrent.PiecePriorityNext
		}
		t.Piece(i).SetPriority(prio)
	}
}
