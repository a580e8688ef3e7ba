package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Debate backend the client talks to.
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Local state (identity record + usage counters).
	StateBackend  string // sqlite | mysql | redis | memory
	StatePath     string
	StateDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	TierPolicyFile string

	// rabbitMQ activity feed; empty URL disables publishing.
	RabbitURL   string
	RabbitQueue string

	// worker
	WorkerConcurrency int
	ActivityDBDSN     string

	// dev backend
	DevListenAddr      string
	DevDBDSN           string
	JWTSecret          string
	TokenTTL           time.Duration
	CheckoutBaseURL    string
	CORSOrigins        []string
	OllamaBaseURL      string
	OllamaModel        string
	OllamaParticipants []string
	OpenRouterAPIKey   string
	OpenRouterBaseURL  string

	// recent messages handed to each participant on broadcast
	ChatContextWindowSize int

	LogLevel string
}

func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:  strings.TrimRight(getEnv("DEBATE_API_URL", "http://localhost:8000"), "/"),
		HTTPTimeout: getEnvDuration("DEBATE_HTTP_TIMEOUT", 90*time.Second),

		StateBackend:  strings.ToLower(getEnv("STATE_BACKEND", "sqlite")),
		StatePath:     getEnv("STATE_PATH", defaultStatePath()),
		StateDSN:      os.Getenv("STATE_DSN"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "debate:"),

		TierPolicyFile: os.Getenv("TIER_POLICY_FILE"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "debate_activity"),

		WorkerConcurrency: clamp(getEnvInt("WORKER_CONCURRENCY", 2), 1, 50),
		ActivityDBDSN:     getEnv("ACTIVITY_DB_DSN", "./data/activity.db"),

		DevListenAddr:      getEnv("DEV_BACKEND_ADDR", ":8000"),
		DevDBDSN:           getEnv("DEV_DB_DSN", "./data/devbackend.db"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		CheckoutBaseURL:    strings.TrimRight(os.Getenv("CHECKOUT_BASE_URL"), "/"),
		CORSOrigins:        corsOrigins(),
		OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3:latest"),
		OllamaParticipants: getEnvList("OLLAMA_PARTICIPANTS"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),

		ChatContextWindowSize: clamp(getEnvInt("CHAT_CONTEXT_WINDOW_SIZE", 20), 1, 100),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the fields the selected backends need are set.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("DEBATE_API_URL cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("DEBATE_HTTP_TIMEOUT must be > 0")
	}
	switch c.StateBackend {
	case "sqlite":
		if c.StatePath == "" {
			return fmt.Errorf("STATE_PATH cannot be empty when STATE_BACKEND=sqlite")
		}
	case "mysql":
		if c.StateDSN == "" {
			return fmt.Errorf("STATE_DSN is required when STATE_BACKEND=mysql")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STATE_BACKEND=redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STATE_BACKEND=%q", c.StateBackend)
	}
	if c.RabbitURL != "" && c.RabbitQueue == "" {
		return fmt.Errorf("RABBIT_QUEUE cannot be empty when RABBIT_URL is set")
	}
	return nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".debate", "state.db")
	}
	return filepath.Join(home, ".debate", "state.db")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// corsOrigins defaults to the local web frontend.
func corsOrigins() []string {
	if l := getEnvList("CORS_ALLOWED_ORIGINS"); len(l) > 0 {
		return l
	}
	return []string{"http://localhost:3000"}
}
