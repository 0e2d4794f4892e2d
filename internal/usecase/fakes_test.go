package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/services/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	mu        sync.Mutex
	adds      atomic.Int32
	addErr    error
	transfers map[domain.ContentID]*fakeTransfer
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{transfers: make(map[domain.ContentID]*fakeTransfer)}
}

// prepare registers the transfer returned for "magnet:<id>".
func (e *fakeEngine) prepare(tr *fakeTransfer) *fakeTransfer {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transfers[tr.id] = tr
	return tr
}

func (e *fakeEngine) Identify(locator string) (domain.ContentID, error) {
	if !strings.HasPrefix(locator, "magnet:") {
		return "", errors.New("not a magnet")
	}
	return domain.ContentID(strings.TrimPrefix(locator, "magnet:")), nil
}

func (e *fakeEngine) AddTransfer(_ context.Context, locator string) (ports.Transfer, error) {
	e.adds.Add(1)
	if e.addErr != nil {
		return nil, e.addErr
	}
	id, _ := e.Identify(locator)
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.transfers[id]
	if !ok {
		tr = newFakeTransfer(id, nil)
		e.transfers[id] = tr
	}
	return tr, nil
}

func (e *fakeEngine) Close() error { return nil }

type fakeTransfer struct {
	id    domain.ContentID
	files []domain.FileRef
	data  map[int][]byte

	mu        sync.Mutex
	available map[int]int64
	noMeta    bool
	removed   atomic.Int32
	reads     atomic.Int32
}

func newFakeTransfer(id domain.ContentID, contents map[string][]byte, order ...string) *fakeTransfer {
	tr := &fakeTransfer{id: id, data: make(map[int][]byte), available: make(map[int]int64)}
	for i, name := range order {
		tr.files = append(tr.files, domain.FileRef{Index: i, Name: name, Path: name, Length: int64(len(contents[name]))})
		tr.data[i] = contents[name]
	}
	return tr
}

func (t *fakeTransfer) setAvailable(index int, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.available[index] = n
}

func (t *fakeTransfer) completeAll() {
	for i, f := range t.files {
		t.setAvailable(i, f.Length)
	}
}

func (t *fakeTransfer) ID() domain.ContentID { return t.id }
func (t *fakeTransfer) Name() string         { return "transfer-" + string(t.id) }

func (t *fakeTransfer) Files(ctx context.Context) ([]domain.FileRef, error) {
	if t.noMeta {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return append([]domain.FileRef(nil), t.files...), nil
}

func (t *fakeTransfer) Progress() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	var p domain.Progress
	for i, f := range t.files {
		p.Length += f.Length
		p.BytesCompleted += t.available[i]
	}
	return p
}

func (t *fakeTransfer) ReadRange(_ context.Context, index int, off int64, p []byte) (int, error) {
	t.reads.Add(1)
	t.mu.Lock()
	avail := t.available[index]
	t.mu.Unlock()
	data := t.data[index]
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	if off >= avail {
		return 0, domain.ErrRangePending
	}
	end := off + int64(len(p))
	if end > avail {
		end = avail
	}
	return copy(p, data[off:end]), nil
}

func (t *fakeTransfer) Remove() error {
	t.removed.Add(1)
	return nil
}

type fakeRepo struct {
	mu       sync.Mutex
	records  map[domain.ContentID]domain.TransferRecord
	updates  []domain.ProgressUpdate
	deleted  []domain.ContentID
	upsertEr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[domain.ContentID]domain.TransferRecord)}
}

func (r *fakeRepo) Upsert(_ context.Context, rec domain.TransferRecord) error {
	if r.upsertEr != nil {
		return r.upsertEr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRepo) UpdateProgress(_ context.Context, id domain.ContentID, u domain.ProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.BytesCompleted > rec.BytesCompleted {
		rec.BytesCompleted = u.BytesCompleted
	}
	rec.Length = u.Length
	rec.Completed = rec.Completed || u.Completed
	r.records[id] = rec
	r.updates = append(r.updates, u)
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id domain.ContentID) (domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.TransferRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) ListIncomplete(context.Context) ([]domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransferRecord
	for _, rec := range r.records {
		if !rec.Completed {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id domain.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func newRegistry(engine ports.TransferEngine) *session.Registry {
	return session.NewRegistry(engine, session.WithLogger(discardLogger()))
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%97)
	}
	return b
}
