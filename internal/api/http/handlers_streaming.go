package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"torrentplay/internal/domain"
	"torrentplay/internal/metrics"
	"torrentplay/internal/services/media"
	"torrentplay/internal/usecase"
)

const (
	streamChunkSize   = 256 << 10
	retryAfterSeconds = 2
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.openStream == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "stream use case not configured")
		return
	}
	id := contentIDParam(r)
	result, err := s.openStream.Execute(r.Context(), id, r.URL.Query().Get("file"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	s.serveContent(w, r, result)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	if s.openDownload == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "download use case not configured")
		return
	}
	result, err := s.openDownload.Execute(chi.URLParam(r, "name"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	s.serveContent(w, r, result)
}

// serveContent writes a stream result with single-range support. Live and
// disk sources go through the same path so both yield identical bytes.
//
// The first chunk is read before any header is sent: if it is still pending
// the client gets 503 with Retry-After. Once the status line is out, a read
// failure aborts the connection so a short body is never mistaken for a
// complete one.
func (s *Server) serveContent(w http.ResponseWriter, r *http.Request, result usecase.StreamResult) {
	defer result.Reader.Close()

	size := result.Size
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", media.ContentType(result.Name))
	if !result.ModTime.IsZero() {
		w.Header().Set("Last-Modified", result.ModTime.UTC().Format(http.TimeFormat))
	}

	status := http.StatusOK
	start, end := int64(0), size-1
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		var err error
		start, end, err = parseByteRange(rangeHeader, size)
		if errors.Is(err, errInvalidRange) {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid range")
			return
		}
		if errors.Is(err, domain.ErrRangeNotSatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "range not satisfiable")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	length := end - start + 1
	if length < 0 {
		length = 0
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))

	if r.Method == http.MethodHead || length == 0 {
		w.WriteHeader(status)
		return
	}

	if _, err := result.Reader.Seek(start, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to seek stream")
		return
	}

	buf := make([]byte, min(length, streamChunkSize))
	n, err := readSome(result.Reader, buf)
	if err != nil {
		w.Header().Del("Content-Length")
		w.Header().Del("Content-Range")
		w.Header().Del("Last-Modified")
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			return
		}
		s.writeUseCaseError(w, r, err)
		return
	}

	w.WriteHeader(status)
	written, err := w.Write(buf[:n])
	total := int64(written)
	if err == nil {
		// Commit the status line so a later abort reads as a broken body.
		_ = http.NewResponseController(w).Flush()
	}
	if err == nil && total < length {
		var rest int64
		rest, err = io.CopyBuffer(w, io.LimitReader(result.Reader, length-total), buf)
		total += rest
	}
	metrics.StreamBytesTotal.WithLabelValues(string(result.Source)).Add(float64(total))

	if total == length {
		return
	}
	if r.Context().Err() != nil {
		s.logger.Debug("stream client went away",
			slog.String("path", r.URL.Path),
			slog.Int64("written", total),
			slog.Int64("length", length),
		)
		return
	}
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("source", string(result.Source)),
		slog.Int64("written", total),
		slog.Int64("length", length),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.Warn("stream aborted before the requested range was complete", attrs...)
	panic(http.ErrAbortHandler)
}

// readSome reads until at least one byte or an error arrives.
func readSome(r io.Reader, p []byte) (int, error) {
	for {
		n, err := r.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
	}
}
