package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"torrentplay/internal/domain"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/metrics"
	"torrentplay/internal/services/session"
)

const (
	defaultPendingMaxWait = 20 * time.Second
	defaultPendingPoll    = 200 * time.Millisecond
	maxPendingPoll        = 2 * time.Second
)

// PendingPolicy bounds how long a read waits for bytes that are still being
// downloaded.
type PendingPolicy struct {
	MaxWait time.Duration
	Poll    time.Duration
}

func (p PendingPolicy) maxWait() time.Duration {
	if p.MaxWait <= 0 {
		return defaultPendingMaxWait
	}
	return p.MaxWait
}

func (p PendingPolicy) poll() time.Duration {
	if p.Poll <= 0 {
		return defaultPendingPoll
	}
	return p.Poll
}

func (p PendingPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.poll()
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.2
	b.MaxInterval = maxPendingPoll
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	return b
}

// progressiveReader serves a file of a running transfer. Missing ranges are
// waited for with backoff up to the policy bound and then reported as
// domain.ErrRangePending; bytes are never invented.
type progressiveReader struct {
	transfer ports.Transfer
	file     domain.FileRef
	policy   PendingPolicy

	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool
	lease  *session.Lease

	pos       int64
	closeOnce sync.Once
}

func newProgressiveReader(ctx context.Context, lease *session.Lease, file domain.FileRef, policy PendingPolicy) *progressiveReader {
	readCtx, cancel := context.WithCancelCause(ctx)
	sessCtx := lease.Context()
	stop := context.AfterFunc(sessCtx, func() {
		cancel(context.Cause(sessCtx))
	})
	metrics.ActiveStreams.Inc()
	return &progressiveReader{
		transfer: lease.Transfer,
		file:     file,
		policy:   policy,
		ctx:      readCtx,
		cancel:   cancel,
		stop:     stop,
		lease:    lease,
	}
}

func (r *progressiveReader) Read(p []byte) (int, error) {
	if r.pos >= r.file.Length {
		return 0, io.EOF
	}
	if err := r.ctx.Err(); err != nil {
		return 0, context.Cause(r.ctx)
	}
	if rem := r.file.Length - r.pos; int64(len(p)) > rem {
		p = p[:rem]
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := r.readOnce(p)
	if errors.Is(err, domain.ErrRangePending) {
		metrics.RangePendingWaitsTotal.Inc()
		n, err = r.waitAndRead(p)
	}
	r.pos += int64(n)
	if err == io.EOF && r.pos < r.file.Length {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (r *progressiveReader) readOnce(p []byte) (int, error) {
	n, err := r.transfer.ReadRange(r.ctx, r.file.Index, r.pos, p)
	if n == 0 && err == nil {
		return 0, domain.ErrRangePending
	}
	return n, err
}

func (r *progressiveReader) waitAndRead(p []byte) (int, error) {
	n, err := backoff.Retry(r.ctx, func() (int, error) {
		n, err := r.readOnce(p)
		if err != nil && !errors.Is(err, domain.ErrRangePending) {
			return n, backoff.Permanent(err)
		}
		return n, err
	}, backoff.WithBackOff(r.policy.backOff()), backoff.WithMaxElapsedTime(r.policy.maxWait()))

	if r.ctx.Err() != nil {
		return 0, context.Cause(r.ctx)
	}
	if errors.Is(err, domain.ErrRangePending) {
		metrics.RangePendingTimeoutsTotal.Inc()
		return 0, fmt.Errorf("%w: offset %d of %s", domain.ErrRangePending, r.pos, r.file.Name)
	}
	return n, err
}

func (r *progressiveReader) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = r.pos + offset
	case io.SeekEnd:
		next = r.file.Length + offset
	default:
		return r.pos, errors.New("invalid whence")
	}
	if next < 0 {
		return r.pos, errors.New("negative position")
	}
	r.pos = next
	return next, nil
}

// Close cancels a pending wait and releases the session lease. The transfer
// keeps running.
func (r *progressiveReader) Close() error {
	r.closeOnce.Do(func() {
		r.stop()
		r.cancel(context.Canceled)
		r.lease.Release()
		metrics.ActiveStreams.Dec()
	})
	return nil
}
