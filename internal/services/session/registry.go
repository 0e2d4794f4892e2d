// Package session owns the table of active transfers keyed by content id.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
)

const defaultDrainTimeout = 5 * time.Second

// Registry maps content ids to running transfers. The lock only guards map
// access; engine calls run outside of it.
type Registry struct {
	engine       ports.TransferEngine
	logger       *slog.Logger
	now          func() time.Time
	drainTimeout time.Duration

	mu       sync.RWMutex
	sessions map[domain.ContentID]*entry
	starts   singleflight.Group
}

type entry struct {
	session  domain.Session
	transfer ports.Transfer

	ctx    context.Context
	cancel context.CancelCauseFunc

	readers sync.WaitGroup
	active  atomic.Int64
}

// Handle is a point-in-time view of a registered session.
type Handle struct {
	Session  domain.Session
	Transfer ports.Transfer
	Readers  int64
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDrainTimeout bounds how long Evict waits for readers to let go.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

func NewRegistry(engine ports.TransferEngine, opts ...Option) *Registry {
	r := &Registry{
		engine:       engine,
		logger:       slog.Default(),
		now:          time.Now,
		drainTimeout: defaultDrainTimeout,
		sessions:     make(map[domain.ContentID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartOrAttach returns the session for the content behind locator, starting
// a transfer only if none is registered. Concurrent calls for the same content
// share a single AddTransfer.
func (r *Registry) StartOrAttach(ctx context.Context, locator string) (domain.Session, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return domain.Session{}, domain.ErrInvalidLocator
	}
	id, err := r.engine.Identify(locator)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrInvalidLocator, err)
	}
	if s, ok := r.lookup(id); ok {
		return s, nil
	}

	// The shared call must not die with the first caller's request.
	addCtx := context.WithoutCancel(ctx)
	v, err, _ := r.starts.Do(string(id), func() (any, error) {
		if s, ok := r.lookup(id); ok {
			return s, nil
		}
		transfer, err := r.engine.AddTransfer(addCtx, locator)
		if err != nil {
			return domain.Session{}, fmt.Errorf("add transfer: %w", err)
		}
		if transfer.ID() != id {
			r.logger.Warn("engine returned unexpected content id",
				slog.String("want", string(id)),
				slog.String("got", string(transfer.ID())),
			)
		}

		sessCtx, cancel := context.WithCancelCause(context.Background())
		e := &entry{
			session: domain.Session{
				ID:        id,
				Locator:   locator,
				Name:      transfer.Name(),
				CreatedAt: r.now().UTC(),
			},
			transfer: transfer,
			ctx:      sessCtx,
			cancel:   cancel,
		}

		sess := e.session

		r.mu.Lock()
		r.sessions[id] = e
		r.mu.Unlock()

		r.logger.Info("session registered",
			slog.String("id", string(id)),
			slog.String("name", sess.Name),
		)
		return sess, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return v.(domain.Session), nil
}

func (r *Registry) Get(id domain.ContentID) (domain.Session, error) {
	s, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

// Handle returns the session together with its transfer.
func (r *Registry) Handle(id domain.ContentID) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return Handle{}, domain.ErrNotFound
	}
	return e.handle(), nil
}

// SetSelectedFile records the playable file of a session.
func (r *Registry) SetSelectedFile(id domain.ContentID, file domain.FileRef) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	f := file
	e.session.SelectedFile = &f
	return e.session, nil
}

// List returns all sessions ordered by creation time.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	out := make([]Handle, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.handle())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Session, out[j].Session
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Lease pins a session for the duration of one read. Its context is cancelled
// with domain.ErrSessionEvicted when the session is evicted.
type Lease struct {
	Session  domain.Session
	Transfer ports.Transfer

	ctx     context.Context
	release func()
	once    sync.Once
}

func (l *Lease) Context() context.Context { return l.ctx }

func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Acquire registers an in-flight reader on the session.
func (r *Registry) Acquire(id domain.ContentID) (*Lease, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	var sess domain.Session
	if ok {
		e.readers.Add(1)
		e.active.Add(1)
		sess = e.session
	}
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	return &Lease{
		Session:  sess,
		Transfer: e.transfer,
		ctx:      e.ctx,
		release: func() {
			e.active.Add(-1)
			e.readers.Done()
		},
	}, nil
}

// Evict unregisters the session, cancels its readers with
// domain.ErrSessionEvicted, waits for them to release (bounded by the drain
// timeout and ctx) and then removes the transfer from the engine.
func (r *Registry) Evict(ctx context.Context, id domain.ContentID) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	e.cancel(domain.ErrSessionEvicted)

	drained := make(chan struct{})
	go func() {
		e.readers.Wait()
		close(drained)
	}()

	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		r.logger.Warn("session readers did not drain before removal",
			slog.String("id", string(id)),
			slog.Int64("readers", e.active.Load()),
		)
	case <-ctx.Done():
		r.logger.Warn("session eviction interrupted while draining",
			slog.String("id", string(id)),
		)
	}

	if err := e.transfer.Remove(); err != nil {
		return fmt.Errorf("remove transfer: %w", err)
	}
	r.logger.Info("session evicted", slog.String("id", string(id)))
	return nil
}

// Close evicts every session. Used on shutdown.
func (r *Registry) Close(ctx context.Context) {
	for _, h := range r.List() {
		if err := r.Evict(ctx, h.Session.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("evict on close failed",
				slog.String("id", string(h.Session.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Registry) lookup(id domain.ContentID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return e.session, true
}

func (e *entry) handle() Handle {
	return Handle{
		Session:  e.session,
		Transfer: e.transfer,
		Readers:  e.active.Load(),
	}
}
