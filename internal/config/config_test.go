package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_TYPE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.SessionDuration != 24*time.Hour {
		t.Errorf("SessionDuration = %v, want 24h", cfg.SessionDuration)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathdrill.yaml")
	content := []byte("port: \"9090\"\ndatabase_type: postgres\nsession_duration: 2h\nses_from_email: noreply@example.com\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("SESSION_DURATION", "")
	t.Setenv("SES_FROM_EMAIL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"env overrides file", cfg.ServerPort, "7070"},
		{"file value kept", cfg.DatabaseType, "postgres"},
		{"duration parsed", cfg.SessionDuration, 2 * time.Hour},
		{"email from file", cfg.SESFromEmail, "noreply@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("LOGIN_RATE_LIMIT", "lots")
	t.Setenv("DEBUG", "maybe")
	t.Setenv("LOGIN_RATE_WINDOW", "soon")

	if got := getEnvInt("LOGIN_RATE_LIMIT", 10); got != 10 {
		t.Errorf("getEnvInt = %d, want 10", got)
	}
	if got := getEnvBool("DEBUG", true); !got {
		t.Error("getEnvBool should fall back to default")
	}
	if got := getEnvDuration("LOGIN_RATE_WINDOW", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration = %v, want 1m", got)
	}
}
