package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"uiagent/internal/artifact"
	"uiagent/internal/llm"
	"uiagent/internal/session"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	LLM      LLMConfig
	Session  session.Config
	Archive  ArchiveConfig
	Artifact ArtifactConfig
	Redis    RedisConfig
}

type LLMConfig struct {
	llm.Config
	PipelineTimeout time.Duration
}

type ArchiveConfig struct {
	Driver string
	DSN    string
}

type ArtifactConfig struct {
	// Dir selects the on-disk store when S3 is not configured.
	Dir       string
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to build an S3 store.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled && a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

func (a ArtifactConfig) S3() artifact.S3Config {
	return artifact.S3Config{
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Bucket:    a.Bucket,
		UseSSL:    a.UseSSL,
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads .env (if present) and the environment. Flags are applied by the
// caller on top of the returned value.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv), nil
}

// FromEnv builds a Config from a lookup func.
func FromEnv(getenv func(string) string) *Config {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	env := firstNonEmpty(get("APP_ENV"), "local")
	cfg := &Config{
		Port:     normalizePort(firstNonEmpty(get("PORT"), ":8080")),
		Env:      env,
		LogLevel: firstNonEmpty(get("LOG_LEVEL"), "info"),
		LLM:      loadLLMConfig(get),
		Session: session.Config{
			MaxSessions:     intOr(get("SESSION_MAX"), 1024),
			IdleTTL:         durationOr(get("SESSION_IDLE_TTL"), 2*time.Hour),
			RenderCacheSize: intOr(get("SESSION_RENDER_CACHE"), 256),
		},
		Archive: ArchiveConfig{
			Driver: strings.ToLower(get("ARCHIVE_DRIVER")),
			DSN:    firstNonEmpty(get("ARCHIVE_DSN"), get("DATABASE_URL")),
		},
		Artifact: loadArtifactConfig(env, get),
		Redis: RedisConfig{
			Addr:     get("REDIS_ADDR"),
			Password: get("REDIS_PASSWORD"),
			DB:       intOr(get("REDIS_DB"), 0),
		},
	}
	if isLocal(env) {
		applyLocalDefaults(cfg, get)
	}
	return cfg
}

func loadLLMConfig(get func(string) string) LLMConfig {
	provider := strings.ToLower(firstNonEmpty(get("LLM_PROVIDER"), "groq"))
	key := firstNonEmpty(get("GROQ_API_KEY"), get("AI_API_KEY"))
	model := get("LLM_MODEL")
	if provider == "gemini" {
		key = get("GEMINI_API_KEY")
	} else if model == "" {
		model = llm.DefaultGroqModel
	}
	return LLMConfig{
		Config: llm.Config{
			Provider:    provider,
			Model:       model,
			APIKey:      key,
			Temperature: float32(floatOr(get("LLM_TEMPERATURE"), 0.1)),
			MaxAttempts: intOr(get("LLM_MAX_ATTEMPTS"), 2),
			BaseURL:     get("LLM_BASE_URL"),
		},
		PipelineTimeout: durationOr(get("PIPELINE_TIMEOUT"), 90*time.Second),
	}
}

func loadArtifactConfig(env string, get func(string) string) ArtifactConfig {
	endpoint := get("ARTIFACT_S3_ENDPOINT")
	return ArtifactConfig{
		Dir:       get("ARTIFACT_DIR"),
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(get("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(get("ARTIFACT_S3_ACCESS_KEY"), get("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(get("ARTIFACT_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(get("ARTIFACT_S3_BUCKET"), "uiagent-artifacts"),
		UseSSL:    boolOr(get("ARTIFACT_S3_USE_SSL"), true),
	}
}

// SetPort overrides the listen address; a bare number becomes ":<n>".
func (c *Config) SetPort(p string) {
	if p = strings.TrimSpace(p); p != "" {
		c.Port = normalizePort(p)
	}
}

func normalizePort(p string) string {
	if strings.HasPrefix(p, ":") || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func isLocal(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "local")
}

func intOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func floatOr(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func boolOr(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func durationOr(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
