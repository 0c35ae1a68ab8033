package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != "diskv" {
		t.Fatalf("expected diskv backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.QuotaBytes != 5242880 {
		t.Fatalf("expected local quota default, got %d", cfg.Storage.QuotaBytes)
	}
	if cfg.Storage.WriteTimeout != 0 {
		t.Fatalf("expected no write timeout by default, got %v", cfg.Storage.WriteTimeout)
	}
	if cfg.Remote.PathPrefix != "tasks/" {
		t.Fatalf("expected tasks/ prefix, got %q", cfg.Remote.PathPrefix)
	}
	if cfg.Remote.Enabled {
		t.Fatalf("expected remote sync disabled by default")
	}
	if _, err := os.UserHomeDir(); err == nil && strings.HasPrefix(cfg.Storage.Path, "~") {
		t.Fatalf("expected home directory expanded, got %q", cfg.Storage.Path)
	}
}

func TestLoadReadsConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "whattodo.yaml")
	body := strings.Join([]string{
		"storage:",
		"  backend: sqlite",
		"  path: " + filepath.Join(dir, "data.db"),
		"  write_timeout: 5s",
		"app:",
		"  timezone: UTC",
	}, "\n")
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.WriteTimeout != 5*time.Second {
		t.Fatalf("expected 5s write timeout, got %v", cfg.Storage.WriteTimeout)
	}
	if cfg.Logger.Level != "debug" {
		t.Fatalf("expected env override for log level, got %q", cfg.Logger.Level)
	}
	loc, err := cfg.App.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		return Config{
			App:     AppConfig{Timezone: "Local"},
			Storage: StorageConfig{Backend: "diskv", Path: "/tmp/x", QuotaBytes: 10, LegacyQuotaBytes: 10},
			Server:  ServerConfig{Port: 8080},
			JWT:     JWTConfig{Secret: defaultJWTSecret},
			Remote:  RemoteConfig{Backend: "postgres"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "unknown storage backend"},
		{name: "memory needs no path", mutate: func(c *Config) { c.Storage.Backend = "memory"; c.Storage.Path = "" }},
		{name: "missing path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage path"},
		{name: "zero quota", mutate: func(c *Config) { c.Storage.QuotaBytes = 0 }, wantErr: "quotas"},
		{name: "remote with default secret", mutate: func(c *Config) { c.Remote.Enabled = true }, wantErr: "JWT secret"},
		{name: "remote with secret", mutate: func(c *Config) { c.Remote.Enabled = true; c.JWT.Secret = "s3cret" }},
		{name: "bad timezone", mutate: func(c *Config) { c.App.Timezone = "Mars/Olympus" }, wantErr: "invalid timezone"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
