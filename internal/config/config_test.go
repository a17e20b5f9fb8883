package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.StoreDriver != DriverSQLite || cfg.CacheTTL != 10*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected development JWT secret")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=9090\nSTORE_DRIVER=mongo\nCACHE_TTL=30s\nRATE_LIMIT_RPS=2.5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"PORT", "STORE_DRIVER", "CACHE_TTL", "RATE_LIMIT_RPS"} {
		k := k
		t.Cleanup(func() { os.Unsetenv(k) })
	}
	// Real environment wins over the file.
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.StoreDriver != DriverMongo || cfg.CacheTTL != 30*time.Second || cfg.RateLimitRPS != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "eighty"},
		{"CACHE_TTL", "forever"},
		{"STORE_DRIVER", "postgres"},
		{"RATE_LIMIT_BURST", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Errorf("Load with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
