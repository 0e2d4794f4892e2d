package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
)

// addMagnetTimeout caps the time we wait for the anacrolix client to accept
// a new magnet.
const addMagnetTimeout = 10 * time.Second

type Config struct {
	// DataDir receives completed files flat, by their own file name.
	DataDir string
	// StateDir holds the piece completion database.
	StateDir   string
	ListenPort int
	MaxConns   int
	NoUpload   bool
	// ReadaheadPieces is how many pieces after a missing one are raised in
	// priority when a read hits it.
	ReadaheadPieces int
	Logger          *slog.Logger
}

type Engine struct {
	client    *torrent.Client
	logger    *slog.Logger
	readahead int

	mu        sync.Mutex
	transfers map[domain.ContentID]*Transfer
}

var _ ports.TransferEngine = (*Engine)(nil)

func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataDir == "" {
		return nil, errors.New("data dir is required")
	}
	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = cfg.DataDir + ".state"
	}
	for _, dir := range []string{cfg.DataDir, stateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	completion, err := storage.NewDefaultPieceCompletionForDir(stateDir)
	if err != nil {
		return nil, fmt.Errorf("piece completion: %w", err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = cfg.DataDir
	clientConfig.DefaultStorage = storage.NewFileOpts(storage.NewFileClientOpts{
		ClientBaseDir:   cfg.DataDir,
		FilePathMaker:   flatFilePath,
		TorrentDirMaker: func(baseDir string, _ *metainfo.Info, _ metainfo.Hash) string { return baseDir },
		PieceCompletion: completion,
	})
	if cfg.ListenPort > 0 {
		clientConfig.ListenPort = cfg.ListenPort
	}
	if cfg.MaxConns > 0 {
		clientConfig.EstablishedConnsPerTorrent = cfg.MaxConns
	}
	clientConfig.NoUpload = cfg.NoUpload

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		_ = completion.Close()
		return nil, err
	}

	readahead := cfg.ReadaheadPieces
	if readahead <= 0 {
		readahead = defaultReadaheadPieces
	}
	return &Engine{
		client:    client,
		logger:    logger,
		readahead: readahead,
		transfers: make(map[domain.ContentID]*Transfer),
	}, nil
}

func (e *Engine) Identify(locator string) (domain.ContentID, error) {
	m, err := parseLocator(locator)
	if err != nil {
		return "", err
	}
	return domain.ContentID(m.InfoHash.HexString()), nil
}

func (e *Engine) AddTransfer(ctx context.Context, locator string) (ports.Transfer, error) {
	if e.client == nil {
		return nil, errors.New("torrent client not configured")
	}
	m, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	// AddMagnet can stall while the client is busy; never block the caller
	// past addMagnetTimeout.
	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		t, err := e.client.AddMagnet(m.String())
		ch <- addResult{t, err}
	}()

	var t *torrent.Torrent
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		t = res.t
	case <-time.After(addMagnetTimeout):
		// The goroutine may still complete AddMagnet after we return.
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, errors.New("torrent client busy, try again later")
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ctx.Err()
	}

	id := domain.ContentID(t.InfoHash().HexString())

	e.mu.Lock()
	if existing, ok := e.transfers[id]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	tr := &Transfer{engine: e, t: t, id: id}
	e.transfers[id] = tr
	e.mu.Unlock()

	go tr.downloadWhenReady()

	e.logger.Info("transfer added",
		slog.String("id", string(id)),
		slog.String("name", t.Name()),
	)
	return tr, nil
}

func (e *Engine) forget(id domain.ContentID) {
	e.mu.Lock()
	delete(e.transfers, id)
	e.mu.Unlock()
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	errList := e.client.Close()
	if len(errList) > 0 {
		return errors.Join(errList...)
	}
	return nil
}
