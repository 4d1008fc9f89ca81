package config

import "testing"

func TestLoadRequiresCoreSettings(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "",
		"JWT_SECRET":   "",
	})
	if err == nil {
		t.Fatal("expected error when DATABASE_URL missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/lotwise",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
		"PORT":         "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr())
	}
	if cfg.TenantHeader != "X-Tenant-ID" {
		t.Fatalf("expected default tenant header, got %q", cfg.TenantHeader)
	}
	if cfg.WebhookMaxAttempts != 6 {
		t.Fatalf("expected default webhook attempts, got %d", cfg.WebhookMaxAttempts)
	}
}
