package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/services/catalog"
	"torrentplay/internal/services/session"
)

func startedSession(t *testing.T, engine *fakeEngine, id string) *session.Registry {
	t.Helper()
	reg := newRegistry(engine)
	if _, err := reg.StartOrAttach(context.Background(), "magnet:"+id); err != nil {
		t.Fatalf("StartOrAttach: %v", err)
	}
	return reg
}

func fastPolicy(maxWait time.Duration) PendingPolicy {
	return PendingPolicy{MaxWait: maxWait, Poll: 5 * time.Millisecond}
}

func TestOpenStreamWaitsForPendingRange(t *testing.T) {
	data := payload(4096, 7)
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": data}, "movie.mp4"))
	tr.setAvailable(0, 1024)
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir()), Pending: fastPolicy(2 * time.Second), Logger: discardLogger()}
	res, err := uc.Execute(context.Background(), "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Reader.Close()
	if res.Source != SourceLive || res.Size != 4096 {
		t.Fatalf("unexpected result %+v", res)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		tr.setAvailable(0, 4096)
	}()

	got, err := io.ReadAll(res.Reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("streamed bytes differ from source")
	}
}

func TestOpenStreamPendingBeyondBoundIsReported(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(5000, 1)}, "movie.mp4"))
	tr.setAvailable(0, 1000)
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir()), Pending: fastPolicy(40 * time.Millisecond)}
	res, err := uc.Execute(context.Background(), "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Reader.Close()

	if _, err := res.Reader.Seek(2000, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 100)
	n, err := res.Reader.Read(buf)
	if n != 0 {
		t.Fatalf("pending read returned %d bytes", n)
	}
	if !errors.Is(err, domain.ErrRangePending) {
		t.Fatalf("expected ErrRangePending, got %v", err)
	}
	if tr.reads.Load() < 2 {
		t.Fatalf("expected retries while pending, got %d reads", tr.reads.Load())
	}
}

func TestOpenStreamPartialAvailabilityIsNotPadded(t *testing.T) {
	data := payload(3000, 3)
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": data}, "movie.mp4"))
	tr.setAvailable(0, 1500)
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir()), Pending: fastPolicy(30 * time.Millisecond)}
	res, err := uc.Execute(context.Background(), "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Reader.Close()

	got, err := io.ReadAll(res.Reader)
	if !errors.Is(err, domain.ErrRangePending) {
		t.Fatalf("expected ErrRangePending, got %v", err)
	}
	if !bytes.Equal(got, data[:1500]) {
		t.Fatalf("got %d bytes, want the 1500 available bytes", len(got))
	}
}

func TestOpenStreamEvictionEndsReader(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(2000, 1)}, "movie.mp4"))
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir()), Pending: fastPolicy(5 * time.Second)}
	res, err := uc.Execute(context.Background(), "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := res.Reader.Read(make([]byte, 10))
		res.Reader.Close()
		readErr <- err
	}()

	time.Sleep(30 * time.Millisecond)
	if err := reg.Evict(context.Background(), "abc"); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	select {
	case err := <-readErr:
		if !errors.Is(err, domain.ErrSessionEvicted) {
			t.Fatalf("expected ErrSessionEvicted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader not closed by eviction")
	}
	if tr.removed.Load() != 1 {
		t.Fatalf("transfer not removed after drain")
	}
}

func TestOpenStreamClientCancelKeepsTransfer(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(2000, 1)}, "movie.mp4"))
	reg := startedSession(t, engine, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir()), Pending: fastPolicy(5 * time.Second)}
	res, err := uc.Execute(ctx, "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err = res.Reader.Read(make([]byte, 10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancellation was not prompt")
	}
	res.Reader.Close()

	if tr.removed.Load() != 0 {
		t.Fatalf("client disconnect must not remove the transfer")
	}
	h, err := reg.Handle("abc")
	if err != nil {
		t.Fatalf("session gone after client disconnect: %v", err)
	}
	if h.Readers != 0 {
		t.Fatalf("lease not released, readers=%d", h.Readers)
	}
}

func TestOpenStreamFileNotInSession(t *testing.T) {
	engine := newFakeEngine()
	engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(10, 1)}, "movie.mp4"))
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir())}
	_, err := uc.Execute(context.Background(), "abc", "other.mp4")
	if !errors.Is(err, domain.ErrFileNotInSession) {
		t.Fatalf("expected ErrFileNotInSession, got %v", err)
	}
}

func TestOpenStreamFallsBackToCatalog(t *testing.T) {
	dir := t.TempDir()
	data := payload(300, 9)
	if err := os.WriteFile(filepath.Join(dir, "old.mkv"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	uc := OpenStream{Sessions: newRegistry(newFakeEngine()), Catalog: catalog.New(dir)}

	res, err := uc.Execute(context.Background(), "unknown", "old.mkv")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Reader.Close()
	if res.Source != SourceDisk || res.Size != 300 {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = uc.Execute(context.Background(), "unknown", "missing.mkv")
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestOpenStreamCompletedTransferServesDisk(t *testing.T) {
	dir := t.TempDir()
	data := payload(800, 4)
	if err := os.WriteFile(filepath.Join(dir, "movie.mp4"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": data}, "movie.mp4"))
	tr.completeAll()
	reg := startedSession(t, engine, "abc")

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(dir)}
	res, err := uc.Execute(context.Background(), "abc", "movie.mp4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Reader.Close()
	if res.Source != SourceDisk {
		t.Fatalf("expected disk source, got %s", res.Source)
	}
}

func TestOpenStreamDefaultsToSelectedFile(t *testing.T) {
	engine := newFakeEngine()
	engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(10, 1)}, "movie.mp4"))
	reg := startedSession(t, engine, "abc")
	if _, err := reg.SetSelectedFile("abc", domain.FileRef{Index: 0, Name: "movie.mp4", Path: "movie.mp4", Length: 10}); err != nil {
		t.Fatalf("SetSelectedFile: %v", err)
	}

	uc := OpenStream{Sessions: reg, Catalog: catalog.New(t.TempDir())}
	res, err := uc.Execute(context.Background(), "abc", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res.Reader.Close()
	if res.Name != "movie.mp4" {
		t.Fatalf("name = %q", res.Name)
	}
}
