package apihttp

import (
	"log/slog"
	"net/http"
	"time"

	"torrentplay/internal/usecase"
)

type healthResponse struct {
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Sessions  int                   `json:"sessions"`
	Storage   *usecase.StorageStats `json:"storage,omitempty"`
}

// handleHealth always answers 200 while the process serves requests; a
// failing disk probe only drops the storage block.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}
	if s.listTransfers != nil {
		resp.Sessions = len(s.listTransfers.Execute())
	}
	if s.storage != nil {
		stats, err := s.storage.Execute(r.Context())
		if err != nil {
			s.logger.Warn("storage usage probe failed", slog.String("error", err.Error()))
		} else {
			resp.Storage = &stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
