package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_URL", "MEDIA_URL", "TIME_ZONE", "CACHE_TTL", "CORS_ORIGINS", "RATING_INCLUDE_UNAPPROVED", "TWILIO_ACCOUNT_SID"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.MediaURL != "/media/" {
		t.Errorf("MediaURL = %q", cfg.MediaURL)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.RatingIncludeUnapproved {
		t.Error("Unapproved reviews must not count by default")
	}
	if cfg.TwilioEnabled() {
		t.Error("Twilio must be disabled without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "")
	t.Setenv("DB_NAME", "test.db")
	t.Setenv("MEDIA_URL", "uploads")
	t.Setenv("TIME_ZONE", "Europe/Moscow")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://clinic.example ,")
	t.Setenv("RATING_INCLUDE_UNAPPROVED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBURL != "test.db?_pragma=foreign_keys(1)" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.MediaURL != "/uploads/" {
		t.Errorf("MediaURL = %q", cfg.MediaURL)
	}
	if cfg.Location.String() != "Europe/Moscow" {
		t.Errorf("Location = %v", cfg.Location)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://clinic.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.RatingIncludeUnapproved {
		t.Error("RatingIncludeUnapproved not applied")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "five minutes")
	if _, err := Load(); err == nil {
		t.Error("Expected invalid CACHE_TTL to fail")
	}
}
