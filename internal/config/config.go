// Package config loads runtime settings from the environment, the same
// envStr/envInt/envDur/envBool idiom used throughout this codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port string

	// Limits
	MaxJSONBodyBytes   int64
	MaxImageFetchBytes int64

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// Per-request deadline budget for the table/chart detection stages
	TableTimeBudget time.Duration

	// Image fetch
	FetchTimeout          time.Duration
	AllowPrivateFetchURLs bool

	// OCR engine
	TesseractBinary  string
	TesseractTimeout time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// http
	MaxHeaderBytes int

	// logging
	LogLevel string
}

func Load() Config {
	return Config{
		Port: envStr("PORT", "8080"),

		MaxJSONBodyBytes:   int64(envInt("MAX_JSON_BODY_BYTES", 2<<20)),
		MaxImageFetchBytes: int64(envInt("MAX_IMAGE_FETCH_BYTES", int(25<<20))),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(envInt("MAX_OCR_CONCURRENT", 3)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 5*time.Second),

		TableTimeBudget: envDur("TABLE_TIME_BUDGET", 4*time.Second),

		FetchTimeout:          envDur("FETCH_TIMEOUT", 5*time.Second),
		AllowPrivateFetchURLs: envBool("ALLOW_PRIVATE_FETCH_URLS", false),

		TesseractBinary:  envStr("TESSERACT_BINARY", "tesseract"),
		TesseractTimeout: envDur("TESSERACT_TIMEOUT", 8*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func (c Config) Validate() error {
	if c.TableTimeBudget <= 0 {
		return fmt.Errorf("TABLE_TIME_BUDGET must be positive")
	}
	if c.MaxImageFetchBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_FETCH_BYTES must be positive")
	}
	return nil
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

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
