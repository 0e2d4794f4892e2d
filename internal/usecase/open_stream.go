package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/services/catalog"
	"torrentplay/internal/services/session"
)

type StreamSource string

const (
	SourceLive StreamSource = "live"
	SourceDisk StreamSource = "disk"
)

// StreamResult is a seekable byte source for one file. The caller closes
// Reader.
type StreamResult struct {
	Reader  io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
	Source  StreamSource
}

// OpenStream resolves (session, file name) to a byte source. Active sessions
// are served from the transfer until it completes, after which the finished
// file on disk is used. Unknown sessions fall back to the download catalog.
type OpenStream struct {
	Sessions *session.Registry
	Catalog  catalog.Catalog
	Pending  PendingPolicy
	Logger   *slog.Logger
}

func (uc OpenStream) Execute(ctx context.Context, id domain.ContentID, fileName string) (StreamResult, error) {
	fileName = strings.TrimSpace(fileName)

	h, err := uc.Sessions.Handle(id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return StreamResult{}, err
		}
		if fileName == "" {
			return StreamResult{}, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
		}
		return OpenDownload{Catalog: uc.Catalog}.Execute(fileName)
	}

	if fileName == "" {
		if h.Session.SelectedFile == nil {
			return StreamResult{}, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
		}
		fileName = h.Session.SelectedFile.Name
	}

	file, err := uc.lookupFile(ctx, h, fileName)
	if err != nil {
		return StreamResult{}, err
	}

	if h.Transfer.Progress().Complete() {
		res, err := OpenDownload{Catalog: uc.Catalog}.Execute(file.Name)
		if err == nil && res.Size == file.Length {
			return res, nil
		}
		if err == nil {
			res.Reader.Close()
		}
		uc.logger().Debug("completed file not on disk yet, serving from transfer",
			slog.String("id", string(id)),
			slog.String("file", file.Name),
		)
	}

	lease, err := uc.Sessions.Acquire(id)
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{
		Reader:  newProgressiveReader(ctx, lease, file, uc.Pending),
		Name:    file.Name,
		Size:    file.Length,
		ModTime: h.Session.CreatedAt,
		Source:  SourceLive,
	}, nil
}

func (uc OpenStream) lookupFile(ctx context.Context, h session.Handle, name string) (domain.FileRef, error) {
	if f := h.Session.SelectedFile; f != nil && f.Matches(name) {
		return *f, nil
	}
	// Metadata is normally present once a file was selected; do not wait for
	// it on the streaming path.
	metaCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	files, err := h.Transfer.Files(metaCtx)
	if err != nil {
		return domain.FileRef{}, domain.ErrFileNotInSession
	}
	for _, f := range files {
		if f.Matches(name) {
			return f, nil
		}
	}
	return domain.FileRef{}, domain.ErrFileNotInSession
}

func (uc OpenStream) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

// OpenDownload opens a completed file from the download catalog.
type OpenDownload struct {
	Catalog catalog.Catalog
}

func (uc OpenDownload) Execute(name string) (StreamResult, error) {
	f, entry, err := uc.Catalog.Open(strings.TrimSpace(name))
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{
		Reader:  f,
		Name:    entry.Name,
		Size:    entry.SizeBytes,
		ModTime: entry.ModTime,
		Source:  SourceDisk,
	}, nil
}
