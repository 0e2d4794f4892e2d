package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "torrentplay/internal/api/http"
	"torrentplay/internal/app"
	"torrentplay/internal/domain/ports"
	"torrentplay/internal/metrics"
	mongorepo "torrentplay/internal/repository/mongo"
	"torrentplay/internal/services/catalog"
	"torrentplay/internal/services/media"
	"torrentplay/internal/services/search"
	"torrentplay/internal/services/search/x1337"
	"torrentplay/internal/services/session"
	"torrentplay/internal/services/torrent/engine/anacrolix"
	"torrentplay/internal/telemetry"
	"torrentplay/internal/usecase"
)

const serviceName = "torrentplay"

func main() {
	// A missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("storageDir", cfg.StorageDir),
		slog.String("stateDir", cfg.StateDir),
		slog.Bool("history", cfg.MongoURI != ""),
		slog.Bool("redisCache", cfg.RedisURL != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, repo := connectHistory(rootCtx, cfg, logger)

	engine, err := anacrolix.New(anacrolix.Config{
		DataDir:    cfg.StorageDir,
		StateDir:   cfg.StateDir,
		ListenPort: cfg.TorrentListenPort,
		MaxConns:   cfg.TorrentMaxConns,
		NoUpload:   cfg.TorrentNoUpload,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("torrent engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessions := session.NewRegistry(engine,
		session.WithLogger(logger),
		session.WithDrainTimeout(cfg.EvictDrainTimeout),
	)
	downloads := catalog.New(cfg.StorageDir)
	storage := &usecase.StorageUsage{Dir: cfg.StorageDir}

	startUC := usecase.StartTransfer{
		Sessions:        sessions,
		Selector:        media.NewSelector(cfg.PlayableExtensions),
		Repo:            repo,
		Logger:          logger,
		MetadataTimeout: cfg.MetadataTimeout,
		Now:             time.Now,
	}
	streamUC := usecase.OpenStream{
		Sessions: sessions,
		Catalog:  downloads,
		Pending:  usecase.PendingPolicy{MaxWait: cfg.StreamPendingMaxWait, Poll: cfg.StreamPendingPoll},
		Logger:   logger,
	}

	opts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithGetProgress(usecase.GetProgress{Sessions: sessions}),
		apihttp.WithListTransfers(usecase.ListTransfers{Sessions: sessions}),
		apihttp.WithEvictTransfer(usecase.EvictTransfer{Sessions: sessions, Repo: repo, Logger: logger}),
		apihttp.WithOpenStream(streamUC),
		apihttp.WithDownloads(usecase.ListDownloads{Catalog: downloads}, usecase.OpenDownload{Catalog: downloads}),
		apihttp.WithStorageUsage(storage),
		apihttp.WithMetricsGatherer(registry),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	redisClient := connectSearchCache(rootCtx, cfg, logger)
	if searcher := newSearchService(cfg, redisClient, logger); searcher != nil {
		opts = append(opts, apihttp.WithSearch(usecase.SearchMedia{Search: searcher, MaxResults: cfg.SearchMaxResults}))
	}

	handler := apihttp.NewServer(startUC, opts...)

	if repo != nil {
		// Restore in the background so the HTTP server starts immediately.
		go func() {
			restoreUC := usecase.RestoreSessions{Repo: repo, Start: startUC, Logger: logger}
			n, wg, err := restoreUC.Execute(rootCtx)
			if err != nil {
				logger.Warn("restore sessions failed", slog.String("error", err.Error()))
				return
			}
			wg.Wait()
			if n > 0 {
				logger.Info("sessions restored", slog.Int("count", n))
			}
		}()
	}

	syncUC := &usecase.SyncState{
		Sessions:  sessions,
		Repo:      repo,
		Publisher: handler,
		Storage:   storage,
		Logger:    logger,
		Interval:  cfg.SyncInterval,
	}
	go syncUC.Run(rootCtx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	sessions.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := engine.Close(); err != nil {
		logger.Warn("engine close error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// connectHistory opens the transfer history store. History is optional: on
// any failure the service runs without it.
func connectHistory(ctx context.Context, cfg app.Config, logger *slog.Logger) (*mongo.Client, ports.TransferRepository) {
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, history disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Warn("mongo ping failed, history disabled", slog.String("error", err.Error()))
		_ = client.Disconnect(context.Background())
		return nil, nil
	}

	repo := mongorepo.NewRepository(client, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	return client, repo
}

func connectSearchCache(ctx context.Context, cfg app.Config, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using memory cache", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := search.NewRedisCache(client).Ping(pingCtx); err != nil {
		logger.Warn("redis ping failed, using memory cache", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	return client
}

func newSearchService(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) *search.Service {
	if strings.TrimSpace(cfg.SearchBaseURL) == "" {
		logger.Info("search disabled")
		return nil
	}

	provider := x1337.NewProvider(x1337.Config{
		Endpoint: cfg.SearchBaseURL,
		Client: &http.Client{
			Timeout:   cfg.SearchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})

	opts := []search.ServiceOption{
		search.WithCacheTTL(cfg.SearchCacheTTL),
		search.WithLogger(logger),
	}
	if redisClient != nil {
		opts = append(opts, search.WithCache(search.NewRedisCache(redisClient)))
	}
	return search.NewService([]ports.SearchProvider{provider}, cfg.SearchTimeout, opts...)
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
