package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CATMATCH_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CATMATCH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// RedisURL enables the embedding cache when set.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured LLM provider used for keyword
// suggestions. Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMModel is empty unless overridden; providers pick their own default.
func LLMModel() string {
	return os.Getenv("LLM_MODEL")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

func EmbeddingModel() string {
	return os.Getenv("EMBEDDING_MODEL")
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingCacheTTL defaults to 24h.
func EmbeddingCacheTTL() time.Duration {
	return envDuration("EMBEDDING_CACHE_TTL", 24*time.Hour)
}

// ReloadInterval is how often active categories are reloaded from the
// database. Zero disables periodic reloads.
func ReloadInterval() time.Duration {
	return envDuration("RELOAD_INTERVAL", 0)
}

// MetricsSnapshotInterval is how often daily learning metrics are recomputed
// for every category. Defaults to 24h; zero disables the job.
func MetricsSnapshotInterval() time.Duration {
	return envDuration("METRICS_SNAPSHOT_INTERVAL", 24*time.Hour)
}

// MetricsSnapshotWindow is the feedback window in days for each snapshot.
func MetricsSnapshotWindow() int {
	if v, err := strconv.Atoi(os.Getenv("METRICS_SNAPSHOT_WINDOW_DAYS")); err == nil && v > 0 && v <= 365 {
		return v
	}
	return 30
}

// CategoriesFile is an optional YAML file used to seed an empty database.
func CategoriesFile() string {
	return os.Getenv("CATEGORIES_FILE")
}

// AdminToken guards /v1/admin. Admin routes are disabled when empty.
func AdminToken() string {
	return os.Getenv("ADMIN_TOKEN")
}

// MatchMinSimilarity returns the similarity floor, or def when unset.
func MatchMinSimilarity(def float64) float64 {
	return envFloat("MATCH_MIN_SIMILARITY", def)
}

func MatchMinConfidence(def float64) float64 {
	return envFloat("MATCH_MIN_CONFIDENCE", def)
}

// MatchWeights returns the similarity, keyword and history weights, each
// falling back to its default when unset.
func MatchWeights(similarity, keyword, history float64) (float64, float64, float64) {
	return envFloat("MATCH_WEIGHT_SIMILARITY", similarity),
		envFloat("MATCH_WEIGHT_KEYWORD", keyword),
		envFloat("MATCH_WEIGHT_HISTORY", history)
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}
