package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.Input.Dir = expandEnvVar(cfg.Input.Dir)
	cfg.Rules.File = expandEnvVar(cfg.Rules.File)
	cfg.Blacklist.File = expandEnvVar(cfg.Blacklist.File)
	cfg.Report.Dir = expandEnvVar(cfg.Report.Dir)
	cfg.Metrics.Textfile = expandEnvVar(cfg.Metrics.Textfile)

	db := &cfg.Results.Database
	db.Host = expandEnvVar(db.Host)
	db.User = expandEnvVar(db.User)
	db.Password = expandEnvVar(db.Password)
	db.Database = expandEnvVar(db.Database)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
// A leading ~/ is expanded to the user's home directory.
func expandEnvVar(s string) string {
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + s[1:]
		}
	}

	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	InputDir  string
	Workers   int
	Algorithm string
	ReportDir string
	Label     string
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o CLIOverrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.InputDir != "" {
		c.Input.Dir = o.InputDir
	}
	if o.Workers > 0 {
		c.Input.Workers = o.Workers
		c.Centrality.Workers = o.Workers
	}
	if o.Algorithm != "" {
		c.Clustering.Algorithm = o.Algorithm
	}
	if o.ReportDir != "" {
		c.Report.Dir = o.ReportDir
	}
	if o.Label != "" {
		c.Results.Label = o.Label
	}
}
