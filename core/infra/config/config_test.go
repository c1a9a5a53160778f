package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envListenAddr, "")
	t.Setenv(envWorkDir, "")
	t.Setenv(envEventPollMs, "")
	t.Setenv(envOrigins, "")
	t.Setenv(envLimitsPath, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.WorkDir != defaultWorkDir || cfg.ArtifactsDir != defaultArtifactsDir {
		t.Fatalf("unexpected dirs: %s %s", cfg.WorkDir, cfg.ArtifactsDir)
	}
	if cfg.EventPollInterval != defaultEventPoll {
		t.Fatalf("unexpected poll interval: %v", cfg.EventPollInterval)
	}
	if cfg.Limits != DefaultLimits() {
		t.Fatalf("expected default limits, got %#v", cfg.Limits)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadAllowedOrigins(t *testing.T) {
	t.Setenv(envOrigins, "http://a.com, http://b.com ,")
	t.Setenv(envLimitsPath, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://a.com" || cfg.AllowedOrigins[1] != "http://b.com" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(envListenAddr, ":9999")
	t.Setenv(envEventPollMs, "250")
	t.Setenv(envLimitsPath, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("expected override, got %s", cfg.ListenAddr)
	}
	if cfg.EventPollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms poll, got %v", cfg.EventPollInterval)
	}
}

func TestLoadLimitsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	data := "max_scan_files: 50\nper_file_chars: 900\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write limits: %v", err)
	}
	t.Setenv(envLimitsPath, path)

	cfg := Load()
	if cfg.Limits.MaxScanFiles != 50 || cfg.Limits.PerFileChars != 900 {
		t.Fatalf("limits file not applied: %#v", cfg.Limits)
	}
	if cfg.Limits.MaxBundleFiles != DefaultLimits().MaxBundleFiles {
		t.Fatalf("expected default bundle files, got %d", cfg.Limits.MaxBundleFiles)
	}
}

func TestParseLimitsRejectsEmpty(t *testing.T) {
	if _, err := ParseLimits(nil); err == nil {
		t.Fatalf("expected error for empty limits")
	}
}

func TestParseLimitsZeroFallsBack(t *testing.T) {
	limits, err := ParseLimits([]byte("max_scan_files: 0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if limits.MaxScanFiles != DefaultLimits().MaxScanFiles {
		t.Fatalf("expected fallback, got %d", limits.MaxScanFiles)
	}
}
