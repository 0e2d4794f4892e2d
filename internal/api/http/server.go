package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentplay/internal/domain"
	"torrentplay/internal/usecase"
)

type StartTransferUseCase interface {
	Execute(ctx context.Context, locator string) (usecase.StartResult, error)
}

type SearchUseCase interface {
	Execute(ctx context.Context, query string) ([]domain.SearchResult, error)
}

type GetProgressUseCase interface {
	Execute(id domain.ContentID) (domain.ProgressSnapshot, error)
}

type ListTransfersUseCase interface {
	Execute() []usecase.TransferView
}

type EvictTransferUseCase interface {
	Execute(ctx context.Context, id domain.ContentID) error
}

type OpenStreamUseCase interface {
	Execute(ctx context.Context, id domain.ContentID, fileName string) (usecase.StreamResult, error)
}

type OpenDownloadUseCase interface {
	Execute(name string) (usecase.StreamResult, error)
}

type ListDownloadsUseCase interface {
	Execute() ([]domain.CompletedEntry, error)
}

type StorageUsageUseCase interface {
	Execute(ctx context.Context) (usecase.StorageStats, error)
}

type Server struct {
	startTransfer  StartTransferUseCase
	search         SearchUseCase
	getProgress    GetProgressUseCase
	listTransfers  ListTransfersUseCase
	evictTransfer  EvictTransferUseCase
	openStream     OpenStreamUseCase
	openDownload   OpenDownloadUseCase
	listDownloads  ListDownloadsUseCase
	storage        StorageUsageUseCase
	gatherer       prometheus.Gatherer
	allowedOrigins []string
	rateLimitRPS   float64
	rateLimitBurst int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithSearch(uc SearchUseCase) ServerOption {
	return func(s *Server) {
		s.search = uc
	}
}

func WithGetProgress(uc GetProgressUseCase) ServerOption {
	return func(s *Server) {
		s.getProgress = uc
	}
}

func WithListTransfers(uc ListTransfersUseCase) ServerOption {
	return func(s *Server) {
		s.listTransfers = uc
	}
}

func WithEvictTransfer(uc EvictTransferUseCase) ServerOption {
	return func(s *Server) {
		s.evictTransfer = uc
	}
}

func WithOpenStream(uc OpenStreamUseCase) ServerOption {
	return func(s *Server) {
		s.openStream = uc
	}
}

func WithDownloads(list ListDownloadsUseCase, open OpenDownloadUseCase) ServerOption {
	return func(s *Server) {
		s.listDownloads = list
		s.openDownload = open
	}
}

func WithStorageUsage(uc StorageUsageUseCase) ServerOption {
	return func(s *Server) {
		s.storage = uc
	}
}

// WithMetricsGatherer serves /metrics from the given gatherer instead of
// the default registry.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimitRPS = rps
			s.rateLimitBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(start StartTransferUseCase, opts ...ServerOption) *Server {
	s := &Server{
		startTransfer:  start,
		rateLimitRPS:   100,
		rateLimitBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	r := chi.NewRouter()
	r.Get("/search", s.handleSearch)
	r.Get("/transfers", s.handleTransfers)
	r.Get("/transfers/{id}/progress", s.handleProgress)
	r.Delete("/transfers/{id}", s.handleEvict)
	r.Get("/stream/{id}", s.handleStream)
	r.Head("/stream/{id}", s.handleStream)
	r.Get("/downloads", s.handleListDownloads)
	r.Get("/downloads/{name}", s.handleDownloadFile)
	r.Head("/downloads/{name}", s.handleDownloadFile)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWS)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, r), "torrentplay",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger,
		requestIDMiddleware(
			rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst,
				metricsMiddleware(corsMiddleware(s.allowedOrigins, traced)))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// PublishProgress forwards transfer progress to websocket clients.
func (s *Server) PublishProgress(views []usecase.TransferView) {
	if s.wsHub != nil {
		s.wsHub.PublishProgress(views)
	}
}

// Close disconnects all websocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
