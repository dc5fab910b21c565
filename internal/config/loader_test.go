package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
input:
  dir: /srv/spiderfoot/exports
  workers: 2

rules:
  file: rules.yaml

blacklist:
  builtin: false
  domains:
    - example.org

clustering:
  algorithm: label_propagation
  max_iterations: 50

results:
  enabled: true
  label: weekly
  database:
    host: db.internal
    user: analyst
    password: secret
    database: osint

logging:
  level: debug
  format: json
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Input.Dir != "/srv/spiderfoot/exports" {
		t.Errorf("expected input dir, got %s", cfg.Input.Dir)
	}
	if cfg.Input.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Input.Workers)
	}
	// Unset keys keep their defaults
	if cfg.Input.Pattern != "*.csv" {
		t.Errorf("expected default pattern to survive, got %s", cfg.Input.Pattern)
	}

	if cfg.Rules.File != "rules.yaml" {
		t.Errorf("expected rules file, got %s", cfg.Rules.File)
	}

	if cfg.Blacklist.Builtin {
		t.Error("expected builtin blacklist disabled")
	}
	if len(cfg.Blacklist.Domains) != 1 || cfg.Blacklist.Domains[0] != "example.org" {
		t.Errorf("expected one blacklist domain, got %v", cfg.Blacklist.Domains)
	}

	if cfg.Clustering.Algorithm != AlgorithmLabelPropagation {
		t.Errorf("expected label_propagation, got %s", cfg.Clustering.Algorithm)
	}
	if cfg.Clustering.MaxIterations != 50 {
		t.Errorf("expected max_iterations 50, got %d", cfg.Clustering.MaxIterations)
	}
	if cfg.Clustering.Resolution != 1.0 {
		t.Errorf("expected default resolution, got %f", cfg.Clustering.Resolution)
	}

	if !cfg.Results.Enabled || cfg.Results.Label != "weekly" {
		t.Errorf("expected results enabled with label weekly, got %+v", cfg.Results)
	}
	if cfg.Results.Database.Host != "db.internal" {
		t.Errorf("expected results host, got %s", cfg.Results.Database.Host)
	}
	if cfg.Results.Database.Port != 3306 {
		t.Errorf("expected default results port 3306, got %d", cfg.Results.Database.Port)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level 'debug', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("TEST_PM_DB_HOST", "env-host")
	t.Setenv("TEST_PM_DB_PASS", "env-pass")
	t.Setenv("TEST_PM_EXPORTS", "/tmp/exports")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-env.yaml")

	configContent := `
input:
  dir: ${TEST_PM_EXPORTS}
results:
  database:
    host: ${TEST_PM_DB_HOST}
    password: $TEST_PM_DB_PASS
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Input.Dir != "/tmp/exports" {
		t.Errorf("expected input dir '/tmp/exports', got %s", cfg.Input.Dir)
	}
	if cfg.Results.Database.Host != "env-host" {
		t.Errorf("expected host 'env-host', got %s", cfg.Results.Database.Host)
	}
	if cfg.Results.Database.Password != "env-pass" {
		t.Errorf("expected password 'env-pass', got %s", cfg.Results.Database.Password)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "test-value"},
		{"$TEST_VAR", "test-value"},
		{"prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"${NONEXISTENT_PM_VAR}", "${NONEXISTENT_PM_VAR}"}, // Unset vars remain unchanged
		{"no-vars-here", "no-vars-here"},
	}

	for _, tt := range tests {
		result := expandEnvVar(tt.input)
		if result != tt.expected {
			t.Errorf("expandEnvVar(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestExpandEnvVarHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := expandEnvVar("~/.puppetmaster_blacklist.txt")
	if got != filepath.Join(home, ".puppetmaster_blacklist.txt") {
		t.Errorf("expected home expansion, got %s", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "puppetmaster.example.yaml"))
	if err != nil {
		t.Fatalf("failed to load example config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config should validate: %v", err)
	}
	if cfg.Clustering.Algorithm != AlgorithmLouvain {
		t.Errorf("expected louvain, got %s", cfg.Clustering.Algorithm)
	}
	if cfg.Results.TablePrefix != "pm_" {
		t.Errorf("expected pm_ prefix, got %s", cfg.Results.TablePrefix)
	}
}
