package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	StorageDir         string
	StateDir           string
	PlayableExtensions []string
	MetadataTimeout    time.Duration

	StreamPendingMaxWait time.Duration
	StreamPendingPoll    time.Duration
	EvictDrainTimeout    time.Duration
	SyncInterval         time.Duration

	TorrentListenPort int
	TorrentMaxConns   int
	TorrentNoUpload   bool

	MongoURI        string // empty disables transfer history
	MongoDatabase   string
	MongoCollection string
	RedisURL        string // empty keeps the search cache in memory

	SearchBaseURL    string // comma separated mirrors; empty disables search
	SearchTimeout    time.Duration
	SearchCacheTTL   time.Duration
	SearchMaxResults int

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		StorageDir:         getEnv("STORAGE_DIR", "downloads"),
		StateDir:           getEnv("STATE_DIR", ".state"),
		PlayableExtensions: getEnvList("PLAYABLE_EXTENSIONS", []string{"mp4", "mkv", "avi"}),
		MetadataTimeout:    getEnvDuration("METADATA_TIMEOUT", 60*time.Second),

		StreamPendingMaxWait: getEnvDuration("STREAM_PENDING_MAX_WAIT", 20*time.Second),
		StreamPendingPoll:    getEnvDuration("STREAM_PENDING_POLL", 200*time.Millisecond),
		EvictDrainTimeout:    getEnvDuration("EVICT_DRAIN_TIMEOUT", 5*time.Second),
		SyncInterval:         getEnvDuration("SYNC_INTERVAL", 2*time.Second),

		TorrentListenPort: int(getEnvInt64("TORRENT_LISTEN_PORT", 42069)),
		TorrentMaxConns:   int(getEnvInt64("TORRENT_MAX_CONNS", 0)),
		TorrentNoUpload:   getEnvBool("TORRENT_NO_UPLOAD", false),

		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "torrentplay"),
		MongoCollection: getEnv("MONGO_COLLECTION", "transfers"),
		RedisURL:        getEnv("REDIS_URL", ""),

		SearchBaseURL:    getEnv("SEARCH_BASE_URL", "https://1337x.to"),
		SearchTimeout:    getEnvDuration("SEARCH_TIMEOUT", 15*time.Second),
		SearchCacheTTL:   getEnvDuration("SEARCH_CACHE_TTL", 10*time.Minute),
		SearchMaxResults: int(getEnvInt64("SEARCH_MAX_RESULTS", 20)),

		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 200)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("30s") and plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
