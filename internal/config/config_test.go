package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default dataDir, got %q", cfg.DataDir)
	}
	if cfg.Server.Port != 8841 {
		t.Fatalf("expected default port 8841, got %d", cfg.Server.Port)
	}
	if cfg.ContextBudget.BudgetRatio != 0.65 {
		t.Fatalf("expected default budgetRatio 0.65, got %v", cfg.ContextBudget.BudgetRatio)
	}

	sum := 0.0
	for _, r := range cfg.ContextBudget.PoolRatios {
		sum += r
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("default pool ratios must sum to ~1, got %v", sum)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if cfg.Embedding.Model != "embedding-default" {
		t.Fatalf("expected default embedding model, got %q", cfg.Embedding.Model)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "server:\n  port: 9999\ndataDir: /tmp/continuity-data\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.DataDir != "/tmp/continuity-data" {
		t.Fatalf("expected overridden dataDir, got %q", cfg.DataDir)
	}
	// Unoverridden keys keep their defaults.
	if cfg.Embedding.Model != "embedding-default" {
		t.Fatalf("expected default embedding model preserved, got %q", cfg.Embedding.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONTINUITY_SERVER__PORT", "7070")
	t.Setenv("CONTINUITY_CONTEXTBUDGET__BUDGETRATIO", "0.42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env override port 7070, got %d", cfg.Server.Port)
	}
	if cfg.ContextBudget.BudgetRatio != 0.42 {
		t.Fatalf("expected env override budgetRatio 0.42, got %v", cfg.ContextBudget.BudgetRatio)
	}
	// Unoverridden keys keep their defaults.
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default dataDir preserved, got %q", cfg.DataDir)
	}
	// Sibling fields in the same nested struct as the override must not
	// be zeroed out by a case-mismatched merge.
	if cfg.ContextBudget.RecentTurnsAlwaysFull != 3 {
		t.Fatalf("expected sibling field recentTurnsAlwaysFull preserved at default 3, got %d", cfg.ContextBudget.RecentTurnsAlwaysFull)
	}
}

func TestEnvKeyTransform(t *testing.T) {
	// Known keys must come back in the exact camelCase defaults() uses,
	// not lowercased, or koanf merges them as a sibling key instead of
	// overriding the default.
	cases := map[string]string{
		"CONTINUITY_SERVER__PORT":               "server.port",
		"CONTINUITY_CONTEXTBUDGET__BUDGETRATIO": "contextBudget.budgetRatio",
		"CONTINUITY_DATADIR":                    "dataDir",
		"CONTINUITY_TOPICTRACKING__WINDOWSIZE":  "topicTracking.windowSize",
	}
	for in, want := range cases {
		if got := envKeyTransform(in); got != want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnvKeyTransformUnknownKeyFallsBackToLowercase(t *testing.T) {
	got := envKeyTransform("CONTINUITY_SOME__UNKNOWN__KEY")
	if got != "some.unknown.key" {
		t.Fatalf("got %q, want %q", got, "some.unknown.key")
	}
}

func TestLoadRejectsBadPoolRatios(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "contextBudget:\n  poolRatios:\n    essential: 0.5\n    high: 0.1\n    medium: 0.1\n    low: 0.1\n    minimal: 0.1\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for pool ratios not summing to 1")
	}
}

func TestLoadRejectsInvalidFieldValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "contextBudget:\n  budgetRatio: 1.5\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for budgetRatio > 1")
	}
}

func TestArchiveDirIsCleaned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "archive:\n  archiveDir: ./archive//nested/../\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Archive.ArchiveDir != "archive" {
		t.Fatalf("expected cleaned path 'archive', got %q", cfg.Archive.ArchiveDir)
	}
}
