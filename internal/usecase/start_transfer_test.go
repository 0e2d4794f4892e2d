package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/services/media"
)

func TestStartTransferSelectsFirstPlayable(t *testing.T) {
	engine := newFakeEngine()
	engine.prepare(newFakeTransfer("abc", map[string][]byte{
		"readme.txt": payload(10, 1),
		"movie.mkv":  payload(50, 2),
		"sample.mp4": payload(500, 3),
	}, "readme.txt", "movie.mkv", "sample.mp4"))
	repo := newFakeRepo()

	uc := StartTransfer{
		Sessions: newRegistry(engine),
		Selector: media.NewSelector(nil),
		Repo:     repo,
		Logger:   discardLogger(),
	}
	res, err := uc.Execute(context.Background(), "magnet:abc")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Session.ID != "abc" || res.File.Name != "movie.mkv" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Progress.Complete || res.Progress.Fraction != 0 {
		t.Fatalf("unexpected progress %+v", res.Progress)
	}

	rec, err := repo.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if rec.FileName != "movie.mkv" || rec.Locator != "magnet:abc" {
		t.Fatalf("unexpected record %+v", rec)
	}

	again, err := uc.Execute(context.Background(), "magnet:abc")
	if err != nil {
		t.Fatalf("Execute attach: %v", err)
	}
	if again.File.Name != "movie.mkv" || engine.adds.Load() != 1 {
		t.Fatalf("attach should reuse session, adds=%d file=%q", engine.adds.Load(), again.File.Name)
	}
}

func TestStartTransferNoPlayableFile(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"readme.txt": payload(10, 1)}, "readme.txt"))
	reg := newRegistry(engine)

	uc := StartTransfer{Sessions: reg, Selector: media.NewSelector(nil), Logger: discardLogger()}
	_, err := uc.Execute(context.Background(), "magnet:abc")
	if !errors.Is(err, domain.ErrNoPlayableFile) {
		t.Fatalf("expected ErrNoPlayableFile, got %v", err)
	}
	if _, err := reg.Get("abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("session should be evicted, got %v", err)
	}
	if tr.removed.Load() != 1 {
		t.Fatalf("transfer should be removed")
	}
}

func TestStartTransferInvalidLocator(t *testing.T) {
	uc := StartTransfer{Sessions: newRegistry(newFakeEngine()), Logger: discardLogger()}
	_, err := uc.Execute(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	_, err = uc.Execute(context.Background(), "ftp://nope")
	if !errors.Is(err, domain.ErrInvalidLocator) {
		t.Fatalf("expected ErrInvalidLocator, got %v", err)
	}
}

func TestStartTransferEngineFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.addErr = errors.New("dht offline")
	uc := StartTransfer{Sessions: newRegistry(engine), Logger: discardLogger()}

	_, err := uc.Execute(context.Background(), "magnet:abc")
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
}

func TestStartTransferMetadataTimeout(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", nil))
	tr.noMeta = true
	uc := StartTransfer{
		Sessions:        newRegistry(engine),
		Logger:          discardLogger(),
		MetadataTimeout: 20 * time.Millisecond,
	}

	_, err := uc.Execute(context.Background(), "magnet:abc")
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if errors.Is(err, domain.ErrNoPlayableFile) {
		t.Fatalf("pending metadata must not look like a missing media file")
	}
}

func TestStartTransferRepoFailureDoesNotFail(t *testing.T) {
	engine := newFakeEngine()
	engine.prepare(newFakeTransfer("abc", map[string][]byte{"a.mp4": payload(10, 1)}, "a.mp4"))
	repo := newFakeRepo()
	repo.upsertEr = errors.New("mongo down")

	uc := StartTransfer{Sessions: newRegistry(engine), Repo: repo, Logger: discardLogger()}
	if _, err := uc.Execute(context.Background(), "magnet:abc"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
