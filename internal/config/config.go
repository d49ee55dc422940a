package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port       string
	CORSOrigin string

	// Secrets
	InternalSharedSecret string

	// Limits
	MaxJSONBodyBytes int64
	MaxUploadBytes   int64
	MaxHeaderBytes   int
	MaxURLLen        int

	// Concurrency
	MaxConcurrentRequests int64
	MaxRenderConcurrent   int64
	MaxPageWorkers        int

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	VerifyTimeout   time.Duration
	DownloadTimeout time.Duration

	// Poppler
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
	RenderTimeout    time.Duration
	RenderDPI        int

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// Verification
	MatchThreshold     float64
	CandidateThreshold float64
	MinPageWords       int
	SchemaFile         string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, fills variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:       envStr("PORT", "8080"),
		CORSOrigin: envStr("CORS_ORIGIN", "*"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 64<<10)),
		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_BYTES", 25<<20)),
		MaxHeaderBytes:   envInt("MAX_HEADER_BYTES", 1<<20),
		MaxURLLen:        envInt("MAX_URL_LEN", 2048),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxRenderConcurrent:   int64(envInt("MAX_RENDER_CONCURRENT", 3)),
		MaxPageWorkers:        envInt("MAX_PAGE_WORKERS", 8),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		VerifyTimeout:   envDur("VERIFY_TIMEOUT", 120*time.Second),
		DownloadTimeout: envDur("DOWNLOAD_TIMEOUT", 25*time.Second),

		PDFInfoTimeout:   envDur("PDFINFO_TIMEOUT", 5*time.Second),
		PDFToTextTimeout: envDur("PDFTOTEXT_TIMEOUT", 10*time.Second),
		RenderTimeout:    envDur("RENDER_TIMEOUT", 90*time.Second),
		RenderDPI:        envInt("RENDER_DPI", 150),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MatchThreshold:     envFloat("MATCH_THRESHOLD", 0.7),
		CandidateThreshold: envFloat("CANDIDATE_THRESHOLD", 0.5),
		MinPageWords:       envInt("MIN_PAGE_WORDS", 20),
		SchemaFile:         envStr("SCHEMA_FILE", ""),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}
}

func (c Config) Validate() error {
	if s := strings.TrimSpace(c.InternalSharedSecret); s != "" && len(s) < 32 {
		return errors.New("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	if c.MatchThreshold >= 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be below 1, got %v", c.MatchThreshold)
	}
	if c.CandidateThreshold >= 1 {
		return fmt.Errorf("CANDIDATE_THRESHOLD must be below 1, got %v", c.CandidateThreshold)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
