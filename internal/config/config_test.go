package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Store.Path != "data/agora.db" {
		t.Errorf("expected default store path, got %q", cfg.Store.Path)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected default NATS port 4222, got %d", cfg.NATS.Port)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if cfg.Validation.MaxTerminationDepth != 32 {
		t.Errorf("expected default max termination depth 32, got %d", cfg.Validation.MaxTerminationDepth)
	}
	if !cfg.Gallery.Seed {
		t.Error("expected gallery seeding enabled by default")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("AGORA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("AGORA_STORE_PATH", "/tmp/custom.db")
	t.Setenv("AGORA_WEB_PORT", "9090")
	t.Setenv("AGORA_WEB_PASSWORD", "hunter2")
	t.Setenv("AGORA_GALLERY_USER", "alice@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store.Path != "/tmp/custom.db" {
		t.Errorf("expected store path override, got %q", cfg.Store.Path)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Web.Auth != "hunter2" {
		t.Errorf("expected web auth override, got %q", cfg.Web.Auth)
	}
	if cfg.Gallery.UserID != "alice@example.com" {
		t.Errorf("expected gallery user override, got %q", cfg.Gallery.UserID)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agora.yaml")

	content := `
store:
  path: ${TEST_STORE_DIR}/agora.db
nats:
  port: 5222
web:
  enabled: false
validation:
  max_termination_depth: 8
gallery:
  seed: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGORA_CONFIG", path)
	t.Setenv("TEST_STORE_DIR", "/srv/agora")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store.Path != "/srv/agora/agora.db" {
		t.Errorf("expected env-expanded store path, got %q", cfg.Store.Path)
	}
	if cfg.NATS.Port != 5222 {
		t.Errorf("expected NATS port 5222, got %d", cfg.NATS.Port)
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	if cfg.Validation.MaxTerminationDepth != 8 {
		t.Errorf("expected max termination depth 8, got %d", cfg.Validation.MaxTerminationDepth)
	}
	if cfg.Gallery.Seed {
		t.Error("expected gallery seeding disabled")
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agora.yaml")

	if err := os.WriteFile(path, []byte("store: [not a mapping"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGORA_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
