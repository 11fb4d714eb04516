package app

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/yungbote/powerlens-backend/internal/data/db"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/envutil"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

const defaultSystemUserID = "00000000-0000-7000-8000-000000000001"

type Config struct {
	LogMode string
	Port    string

	DB db.Config

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	System   db.SystemIdentity
	Mutation services.MutationConfig

	RedisAddr    string
	RedisLockTTL time.Duration

	InferenceBaseURL    string
	InferenceAPIKey     string
	InferenceTimeout    time.Duration
	InferenceMaxRetries int

	Otel           observability.OtelConfig
	MetricsEnabled bool
	CORSOrigins    []string
}

// LoadDotEnv reads .env (or the given files) into the process environment.
// Variables already set win; a missing file is not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func LoadConfig(log *logger.Logger) Config {
	systemID, err := uuid.Parse(envutil.String("SYSTEM_USER_ID", defaultSystemUserID, log))
	if err != nil {
		log.Warn("SYSTEM_USER_ID is not a uuid, using default", "error", err)
		systemID = uuid.MustParse(defaultSystemUserID)
	}

	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development", log),
		Port:    envutil.String("PORT", "8080", log),
		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres, log),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost", log),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432", log),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres", log),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", "", log),
			PostgresName:     envutil.String("POSTGRES_NAME", "powerlens", log),
			SQLitePath:       envutil.String("SQLITE_PATH", "powerlens.db", log),
		},
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL: time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600, log)) * time.Second,
		System: db.SystemIdentity{
			ID:    systemID,
			Email: envutil.String("SYSTEM_USER_EMAIL", "ai-system@powerlens.local", log),
			Name:  envutil.String("SYSTEM_USER_NAME", "AI System", log),
		},
		Mutation: services.MutationConfig{
			MaxAttempts:          envutil.Int("MUTATION_MAX_ATTEMPTS", 5, log),
			RetryBase:            envutil.Millis("MUTATION_RETRY_BASE_MS", 10*time.Millisecond),
			LockFinishedSessions: envutil.Bool("LOCK_FINISHED_SESSIONS", false),
			SystemUserID:         systemID,
		},
		RedisAddr:           envutil.String("REDIS_ADDR", "", log),
		RedisLockTTL:        envutil.Millis("REDIS_LOCK_TTL_MS", 5*time.Second),
		InferenceBaseURL:    envutil.String("INFERENCE_BASE_URL", "", log),
		InferenceAPIKey:     envutil.String("INFERENCE_API_KEY", "", log),
		InferenceTimeout:    time.Duration(envutil.Int("INFERENCE_TIMEOUT_SECONDS", 60, log)) * time.Second,
		InferenceMaxRetries: envutil.Int("INFERENCE_MAX_RETRIES", 2, log),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "powerlens-backend", log),
			Environment: envutil.String("APP_ENV", "development", log),
			Version:     envutil.String("APP_VERSION", "", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1),
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
		CORSOrigins:    splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
