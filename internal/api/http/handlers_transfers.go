package apihttp

import (
	"net/http"
	"strings"

	"torrentplay/internal/domain"
	"torrentplay/internal/usecase"
)

type startTransferResponse struct {
	ID       domain.ContentID        `json:"id"`
	Name     string                  `json:"name,omitempty"`
	FileName string                  `json:"fileName"`
	Length   int64                   `json:"length"`
	Progress domain.ProgressSnapshot `json:"progress"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "search is not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing query parameter q")
		return
	}
	results, err := s.search.Execute(r.Context(), query)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleTransfers starts or attaches when a locator is given and lists the
// active sessions otherwise.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["locator"]; !ok {
		s.handleListTransfers(w, r)
		return
	}
	locator := strings.TrimSpace(r.URL.Query().Get("locator"))
	if locator == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing locator")
		return
	}
	if s.startTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "start use case not configured")
		return
	}
	result, err := s.startTransfer.Execute(r.Context(), locator)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, startTransferResponse{
		ID:       result.Session.ID,
		Name:     result.Session.Name,
		FileName: result.File.Name,
		Length:   result.File.Length,
		Progress: result.Progress,
	})
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	views := []usecase.TransferView{}
	if s.listTransfers != nil {
		views = s.listTransfers.Execute()
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.getProgress == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "progress use case not configured")
		return
	}
	snapshot, err := s.getProgress.Execute(contentIDParam(r))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if s.evictTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "evict use case not configured")
		return
	}
	if err := s.evictTransfer.Execute(r.Context(), contentIDParam(r)); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	if s.listDownloads == nil {
		writeError(w, http.StatusInternalServerError, "catalog_unavailable", "download catalog unavailable")
		return
	}
	entries, err := s.listDownloads.Execute()
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no completed downloads")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
