package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

const defaultConfigFile = "puppetmaster.yaml"

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	workers   int
	algorithm string
)

var rootCmd = &cobra.Command{
	Use:   "puppetmaster",
	Short: "OSINT signal extraction and domain clustering",
	Long: `PuppetMaster reads SpiderFoot scan exports, extracts identifiers that
betray common ownership and groups domains into likely networks.

Features:
  - Tiered signal classification (smoking gun, strong, weak)
  - Connection scoring through an inverted signal index
  - Louvain clustering with label propagation fallback
  - Hub ranking by betweenness centrality
  - CSV reports, MySQL results store and Prometheus textfile metrics`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile,
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override ingest and centrality worker count")
	rootCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "",
		"Override clustering algorithm (louvain, label_propagation)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the persistent flag override values
func GetCLIOverrides() config.CLIOverrides {
	return config.CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Workers:   workers,
		Algorithm: algorithm,
	}
}

// loadConfig reads the config file and applies overrides. A missing default
// config file yields the built-in defaults; a missing explicit one is an error.
func loadConfig(o config.CLIOverrides) (*config.Config, error) {
	path := GetConfigFile()

	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigFile {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command logger from configuration.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
