package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"torrentplay/internal/domain"
	"torrentplay/internal/usecase"
)

// contentIDParam reads the {id} route parameter. Ids are lower-case hex, so
// an upper-case hash still finds its session.
func contentIDParam(r *http.Request) domain.ContentID {
	return domain.ContentID(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "id"))))
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the more specific sentinels come before the ones they wrap.
var useCaseErrors = []errorMapping{
	{domain.ErrSessionEvicted, http.StatusGone, "session_evicted", "session was evicted"},
	{domain.ErrNoPlayableFile, http.StatusNotFound, "no_playable_file", "transfer has no playable file"},
	{domain.ErrRangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "range not satisfiable"},
	{domain.ErrRangePending, http.StatusServiceUnavailable, "range_pending", "requested bytes are not downloaded yet"},
	{domain.ErrInvalidLocator, http.StatusBadRequest, "invalid_request", "invalid content locator"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_request", "invalid request"},
	{domain.ErrFileNotInSession, http.StatusNotFound, "not_found", "file not found in transfer"},
	{domain.ErrFileNotFound, http.StatusNotFound, "not_found", "file not found"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "transfer not found"},
	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream_unavailable", "search provider unavailable"},
	{domain.ErrCatalogUnavailable, http.StatusInternalServerError, "catalog_unavailable", "download catalog unavailable"},
	{usecase.ErrEngine, http.StatusInternalServerError, "engine_error", "transfer engine failure"},
	{usecase.ErrRepository, http.StatusInternalServerError, "repository_error", "repository failure"},
}

func classifyError(err error) (int, string, string) {
	for _, m := range useCaseErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

// writeUseCaseError maps a use case failure to a status code and a short
// message. The full error is logged only.
func (s *Server) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	level := slog.LevelDebug
	if status >= 500 && !errors.Is(err, context.Canceled) {
		level = slog.LevelError
	}
	s.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("code", code),
		slog.String("requestId", requestIDFrom(r.Context())),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, domain.ErrRangePending) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

var errInvalidRange = errors.New("invalid range")

// parseByteRange parses a single "bytes=" range against a resource of the
// given size and returns inclusive offsets.
func parseByteRange(value string, size int64) (int64, int64, error) {
	if size <= 0 {
		return 0, 0, domain.ErrRangeNotSatisfiable
	}

	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "bytes=") {
		return 0, 0, errInvalidRange
	}

	rangeSpec := strings.TrimSpace(value[len("bytes="):])
	if rangeSpec == "" || strings.Contains(rangeSpec, ",") {
		return 0, 0, errInvalidRange
	}

	parts := strings.SplitN(rangeSpec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, errInvalidRange
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr == "" {
		if endStr == "" {
			return 0, 0, errInvalidRange
		}
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix < 0 {
			return 0, 0, errInvalidRange
		}
		if suffix == 0 {
			return 0, 0, domain.ErrRangeNotSatisfiable
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errInvalidRange
	}
	if start >= size {
		return 0, 0, domain.ErrRangeNotSatisfiable
	}
	if endStr == "" {
		return start, size - 1, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, errInvalidRange
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}
