package usecase

import (
	"time"

	"torrentplay/internal/domain"
	"torrentplay/internal/services/session"
)

type TransferView struct {
	ID        domain.ContentID        `json:"id"`
	Name      string                  `json:"name"`
	FileName  string                  `json:"fileName,omitempty"`
	Progress  domain.ProgressSnapshot `json:"progress"`
	Bytes     domain.Progress         `json:"bytes"`
	Readers   int64                   `json:"readers"`
	CreatedAt time.Time               `json:"createdAt"`
}

type ListTransfers struct {
	Sessions *session.Registry
}

func (uc ListTransfers) Execute() []TransferView {
	handles := uc.Sessions.List()
	out := make([]TransferView, 0, len(handles))
	for _, h := range handles {
		out = append(out, viewOf(h))
	}
	return out
}

func viewOf(h session.Handle) TransferView {
	p := h.Transfer.Progress()
	return TransferView{
		ID:        h.Session.ID,
		Name:      h.Session.Name,
		FileName:  h.Session.FileName(),
		Progress:  p.Snapshot(),
		Bytes:     p,
		Readers:   h.Readers,
		CreatedAt: h.Session.CreatedAt,
	}
}
