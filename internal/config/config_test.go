package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.TableTimeBudget != 4*time.Second {
		t.Fatalf("expected default table time budget 4s, got %v", cfg.TableTimeBudget)
	}
	if cfg.AllowPrivateFetchURLs {
		t.Fatalf("expected private fetch URLs disabled by default")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected default shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_OCR_CONCURRENT", "7")
	t.Setenv("ALLOW_PRIVATE_FETCH_URLS", "true")
	t.Setenv("TABLE_TIME_BUDGET", "2s")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected overridden port, got %q", cfg.Port)
	}
	if cfg.MaxOCRConcurrent != 7 {
		t.Fatalf("expected overridden OCR concurrency, got %d", cfg.MaxOCRConcurrent)
	}
	if !cfg.AllowPrivateFetchURLs {
		t.Fatalf("expected private fetch URLs enabled")
	}
	if cfg.TableTimeBudget != 2*time.Second {
		t.Fatalf("expected overridden table time budget, got %v", cfg.TableTimeBudget)
	}
}

func TestValidateRejectsNonPositiveBudgets(t *testing.T) {
	cfg := Load()
	cfg.TableTimeBudget = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero table time budget")
	}

	cfg = Load()
	cfg.MaxImageFetchBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero max image fetch bytes")
	}
}
