// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreNATS   = "nats"
)

// Analyzer modes.
const (
	AnalyzerLLM       = "llm"
	AnalyzerHeuristic = "heuristic"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Storage
	StoreBackend     string
	TemplateSeedGlob string

	// JWT settings
	AuthEnabled bool
	JWTSecret   string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	LLMModel        string

	// Extraction
	Analyzer          string
	ChunkSize         int
	ExtractionTimeout time.Duration
	MaxUploadSize     int64

	// Conversation
	MatchThreshold float64

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),

		// NATS
		NATSEnabled:  getBoolEnv("NATS_ENABLED", false),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Storage
		StoreBackend:     getEnv("STORE_BACKEND", StoreMemory),
		TemplateSeedGlob: getEnv("TEMPLATE_SEED_GLOB", ""),

		// JWT
		AuthEnabled: getBoolEnv("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		LLMModel:        getEnv("LLM_MODEL", ""),

		// Extraction
		Analyzer:          getEnv("ANALYZER", AnalyzerLLM),
		ChunkSize:         getIntEnv("EXTRACTION_CHUNK_SIZE", 4000),
		ExtractionTimeout: getDurationEnv("EXTRACTION_TIMEOUT", 2*time.Minute),
		MaxUploadSize:     getInt64Env("MAX_UPLOAD_SIZE", 10*1024*1024),

		// Conversation
		MatchThreshold: getFloatEnv("MATCH_THRESHOLD", 0.5),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreNATS:
		if !c.NATSEnabled {
			errs = append(errs, errors.New("STORE_BACKEND=nats requires NATS_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.Analyzer {
	case AnalyzerLLM, AnalyzerHeuristic:
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYZER %q", c.Analyzer))
	}
	if c.ChunkSize < 500 {
		errs = append(errs, fmt.Errorf("EXTRACTION_CHUNK_SIZE must be at least 500, got %d", c.ChunkSize))
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize))
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_ENABLED requires JWT_SECRET"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
