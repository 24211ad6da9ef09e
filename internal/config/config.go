package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	ListenAddr string

	// CachePath is the sqlite file backing the local replica. Empty or
	// ":memory:" yields an in-memory store.
	CachePath string

	UpstreamBaseURL string
	UpstreamTimeout int // seconds
	CardAPIBaseURL  string

	// DefaultSyncFrom is used by incremental update when no sync watermark
	// has been persisted yet.
	DefaultSyncFrom string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
}

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewEngineConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:         getenv("APP_SERVICE", "salesdashboard"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		CachePath:       getenv("CACHE_DB_PATH", "sales_cache.db"),
		UpstreamBaseURL: strings.TrimRight(getenv("UPSTREAM_BASE_URL", "http://localhost:9000"), "/"),
		UpstreamTimeout: getenvInt("UPSTREAM_TIMEOUT_SECONDS", 60),
		CardAPIBaseURL:  strings.TrimRight(getenv("CARD_API_BASE_URL", "http://localhost:9000"), "/"),
		DefaultSyncFrom: getenv("DEFAULT_SYNC_FROM", "20250401"),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelExporterProtocol: getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
