package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrInvalidLocator   = fmt.Errorf("%w: content locator", ErrInvalidInput)
	ErrFileNotInSession = fmt.Errorf("%w: file not in session", ErrNotFound)
	ErrFileNotFound     = fmt.Errorf("%w: file", ErrNotFound)
)

// ErrNoPlayableFile marks a transfer without streamable media. It is not
// retryable and never means "still downloading".
var ErrNoPlayableFile = errors.New("no playable file")

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoResults           = errors.New("no results")
)

var (
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	// ErrRangePending reports that the requested bytes are not downloaded yet.
	ErrRangePending = errors.New("range pending")
	// ErrSessionEvicted is the cancellation cause seen by readers that were
	// attached to a session when it was evicted.
	ErrSessionEvicted = errors.New("session evicted")
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")
