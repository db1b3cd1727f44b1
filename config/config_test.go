package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcflow-systems/taskq/config"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := config.Load(""); err == nil {
		t.Fatal("expected an error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LeaseSeconds != 120*time.Second {
		t.Fatalf("expected default LeaseSeconds=120s, got %v", cfg.LeaseSeconds)
	}
	if cfg.Mode != "real" {
		t.Fatalf("expected default mode=real, got %q", cfg.Mode)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "database_url: \"file:from-yaml.db\"\nlease_seconds: 45\nmode: demo\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "file:from-yaml.db" {
		t.Fatalf("expected database_url from file, got %q", cfg.DatabaseURL)
	}
	if cfg.LeaseSeconds != 45*time.Second {
		t.Fatalf("expected lease_seconds=45s from file, got %v", cfg.LeaseSeconds)
	}
	if cfg.Mode != "demo" {
		t.Fatalf("expected mode=demo from file, got %q", cfg.Mode)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "database_url: \"file:from-yaml.db\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "file:from-env.db")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "file:from-env.db" {
		t.Fatalf("expected env var to win over file, got %q", cfg.DatabaseURL)
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	if _, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err != nil {
		t.Fatalf("expected a missing optional config file to be ignored, got %v", err)
	}
}
