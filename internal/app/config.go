package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/socialfeed-backend/internal/data/db"
	"github.com/yungbote/socialfeed-backend/internal/pkg/envutil"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type Config struct {
	Environment string
	Port        string
	CORSOrigins []string

	// WorkersEnabled runs the processor, folder and sync schedule in-process.
	WorkersEnabled bool

	DB db.Config

	QueueBackend  string
	QueueBucket   string
	QueueKey      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OllamaURL        string
	OllamaModel      string
	OllamaTimeout    time.Duration
	OllamaMaxRetries int

	ProcessInterval     time.Duration
	ProcessErrorBackoff time.Duration
	JobStuckTimeout     time.Duration
	JobLeaseTTL         time.Duration
	ConcurrentJobs      int
	ProcessorID         string
	IndexOnComplete     bool

	ProfileUpdateMode   string
	ProfileFoldInterval time.Duration
	ProfileFoldBatch    int
	ProfileDecay        time.Duration

	RankingURL              string
	RankingTimeout          time.Duration
	RankingFailureThreshold int
	RankingOpenTimeout      time.Duration
	RankingSyncCron         string
	MediaURLTTL             time.Duration
	SignMedia               bool

	TriggerUserPostLimit int

	JWTSecretKey          string
	DashboardUser         string
	DashboardPassword     string
	DashboardPasswordHash string

	MetricsEnabled  bool
	OtelEnabled     bool
	OtelEndpoint    string
	OtelHeaders     string
	OtelInsecure    bool
	OtelSampleRatio float64
	ServiceName     string
	ServiceVersion  string
}

// LoadConfig reads the environment. CONFIG_FILE may name a flat YAML map of
// the same keys, used as defaults beneath the environment.
func LoadConfig(log *logger.Logger) (Config, error) {
	defaults, err := readConfigFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	env := envutil.New(log, defaults)

	stuck := env.Duration("JOB_STUCK_TIMEOUT_SECONDS", 300*time.Second, time.Second)
	hostname, _ := os.Hostname()

	cfg := Config{
		Environment: env.String("ENVIRONMENT", "development"),
		Port:        env.String("PORT", "8080"),
		CORSOrigins: splitList(env.String("CORS_ORIGINS", "")),

		WorkersEnabled: env.Bool("WORKERS_ENABLED", true),

		DB: db.Config{
			Driver:     env.String("DB_DRIVER", db.DriverPostgres),
			Host:       env.String("POSTGRES_HOST", "localhost"),
			Port:       env.String("POSTGRES_PORT", "5432"),
			User:       env.String("POSTGRES_USER", "postgres"),
			Password:   env.String("POSTGRES_PASSWORD", ""),
			Name:       env.String("POSTGRES_NAME", "socialfeed"),
			SSLMode:    env.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath: env.String("SQLITE_PATH", "socialfeed.db"),
		},

		QueueBackend:  strings.ToLower(env.String("QUEUE_BACKEND", "postgres")),
		QueueBucket:   env.String("LLM_DATA_BUCKET", "llm-data"),
		QueueKey:      env.String("QUEUE_KEY", ""),
		RedisAddr:     env.String("REDIS_ADDR", ""),
		RedisPassword: env.String("REDIS_PASSWORD", ""),
		RedisDB:       env.Int("REDIS_DB", 0),

		OllamaURL:        env.String("OLLAMA_API_URL", "http://localhost:11434"),
		OllamaModel:      env.String("OLLAMA_MODEL", "llama3.2:3b"),
		OllamaTimeout:    env.Duration("OLLAMA_TIMEOUT_SECONDS", 120*time.Second, time.Second),
		OllamaMaxRetries: env.Int("OLLAMA_MAX_RETRIES", 2),

		ProcessInterval:     env.Duration("PROCESS_INTERVAL_MS", 2*time.Second, time.Millisecond),
		ProcessErrorBackoff: env.Duration("PROCESS_ERROR_BACKOFF_MS", 5*time.Second, time.Millisecond),
		JobStuckTimeout:     stuck,
		JobLeaseTTL:         env.Duration("JOB_LEASE_SECONDS", stuck, time.Second),
		ConcurrentJobs:      env.Int("CONCURRENT_JOBS", 1),
		ProcessorID:         env.String("PROCESSOR_ID", hostname),
		IndexOnComplete:     env.Bool("RANKING_INDEX_ON_COMPLETE", true),

		ProfileUpdateMode:   strings.ToLower(env.String("PROFILE_UPDATE_MODE", "queued")),
		ProfileFoldInterval: env.Duration("PROFILE_FOLD_INTERVAL_MS", time.Second, time.Millisecond),
		ProfileFoldBatch:    env.Int("PROFILE_FOLD_BATCH", 50),
		ProfileDecay:        env.Duration("PROFILE_DECAY_HALF_LIFE_HOURS", 0, time.Hour),

		RankingURL:              env.String("FEED_ALGORITHM_API_URL", ""),
		RankingTimeout:          env.Duration("RANKING_TIMEOUT_SECONDS", 30*time.Second, time.Second),
		RankingFailureThreshold: env.Int("RANKING_BREAKER_FAILURES", 5),
		RankingOpenTimeout:      env.Duration("RANKING_BREAKER_OPEN_SECONDS", 30*time.Second, time.Second),
		RankingSyncCron:         env.String("RANKING_SYNC_CRON", ""),
		MediaURLTTL:             env.Duration("MEDIA_URL_TTL_SECONDS", time.Hour, time.Second),
		SignMedia:               env.Bool("SIGN_MEDIA_URLS", true),

		TriggerUserPostLimit: env.Int("TRIGGER_USER_POST_LIMIT", 50),

		JWTSecretKey:          env.String("JWT_SECRET_KEY", ""),
		DashboardUser:         env.String("LLM_DASHBOARD_USER", ""),
		DashboardPassword:     env.String("LLM_DASHBOARD_PASSWORD", ""),
		DashboardPasswordHash: env.String("LLM_DASHBOARD_PASSWORD_HASH", ""),

		MetricsEnabled:  env.Bool("METRICS_ENABLED", true),
		OtelEnabled:     env.Bool("OTEL_ENABLED", false),
		OtelEndpoint:    env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelHeaders:     env.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OtelInsecure:    env.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OtelSampleRatio: env.Float("OTEL_SAMPLER_RATIO", 0.1),
		ServiceName:     env.String("SERVICE_NAME", "socialfeed"),
		ServiceVersion:  env.String("SERVICE_VERSION", "dev"),
	}
	if cfg.ConcurrentJobs < 1 {
		cfg.ConcurrentJobs = 1
	}
	if cfg.ProfileUpdateMode != "inline" {
		cfg.ProfileUpdateMode = "queued"
	}
	return cfg, nil
}

func readConfigFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
