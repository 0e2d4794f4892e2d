package usecase

import (
	"torrentplay/internal/domain"
	"torrentplay/internal/services/session"
)

// GetProgress reads the current progress of a session. It never blocks on
// network I/O and has no side effects.
type GetProgress struct {
	Sessions *session.Registry
}

func (uc GetProgress) Execute(id domain.ContentID) (domain.ProgressSnapshot, error) {
	h, err := uc.Sessions.Handle(id)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	return h.Transfer.Progress().Snapshot(), nil
}
