// Package config provides configuration structures and loading for PuppetMaster.
package config

// Config represents the complete application configuration.
type Config struct {
	Input       InputConfig       `yaml:"input" mapstructure:"input"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Blacklist   BlacklistConfig   `yaml:"blacklist" mapstructure:"blacklist"`
	Connections ConnectionsConfig `yaml:"connections" mapstructure:"connections"`
	Clustering  ClusteringConfig  `yaml:"clustering" mapstructure:"clustering"`
	Centrality  CentralityConfig  `yaml:"centrality" mapstructure:"centrality"`
	Results     ResultsConfig     `yaml:"results" mapstructure:"results"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// InputConfig describes where scan exports are read from.
type InputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"` // glob matched against file names
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// RulesConfig points at an optional classification ruleset file.
// An empty File selects the built-in ruleset.
type RulesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// BlacklistConfig controls which domains are dropped before classification.
type BlacklistConfig struct {
	Builtin bool     `yaml:"builtin" mapstructure:"builtin"`
	File    string   `yaml:"file" mapstructure:"file"`
	Domains []string `yaml:"domains" mapstructure:"domains"`
}

// ConnectionsConfig tunes the connection builder.
type ConnectionsConfig struct {
	// WeakBucketLimit skips weak-tier values shared by more domains than this. 0 disables.
	WeakBucketLimit int `yaml:"weak_bucket_limit" mapstructure:"weak_bucket_limit"`
}

// ClusteringConfig selects and tunes the community detection algorithm.
type ClusteringConfig struct {
	Algorithm     string  `yaml:"algorithm" mapstructure:"algorithm"` // louvain or label_propagation
	Resolution    float64 `yaml:"resolution" mapstructure:"resolution"`
	MaxLevels     int     `yaml:"max_levels" mapstructure:"max_levels"`
	MaxNodes      int     `yaml:"max_nodes" mapstructure:"max_nodes"` // louvain refuses larger graphs, 0 = unlimited
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"` // 0 keeps sorted visit order
}

// CentralityConfig tunes the hub ranker.
type CentralityConfig struct {
	ExactMaxNodes int   `yaml:"exact_max_nodes" mapstructure:"exact_max_nodes"`
	Samples       int   `yaml:"samples" mapstructure:"samples"`
	Workers       int   `yaml:"workers" mapstructure:"workers"`
	Seed          int64 `yaml:"seed" mapstructure:"seed"`
}

// ResultsConfig configures the optional MySQL results store.
type ResultsConfig struct {
	Enabled     bool           `yaml:"enabled" mapstructure:"enabled"`
	Label       string         `yaml:"label" mapstructure:"label"`
	TablePrefix string         `yaml:"table_prefix" mapstructure:"table_prefix"`
	Database    DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ReportConfig configures CSV report output. An empty Dir disables file reports.
type ReportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MetricsConfig configures the Prometheus textfile export. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Clustering algorithm names accepted in configuration.
const (
	AlgorithmLouvain          = "louvain"
	AlgorithmLabelPropagation = "label_propagation"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Dir:     "exports",
			Pattern: "*.csv",
			Workers: 4,
		},
		Blacklist: BlacklistConfig{
			Builtin: true,
		},
		Connections: ConnectionsConfig{
			WeakBucketLimit: 100,
		},
		Clustering: ClusteringConfig{
			Algorithm:     AlgorithmLouvain,
			Resolution:    1.0,
			MaxLevels:     10,
			MaxNodes:      0,
			MaxIterations: 100,
		},
		Centrality: CentralityConfig{
			ExactMaxNodes: 5000,
			Samples:       500,
			Workers:       4,
			Seed:          1,
		},
		Results: ResultsConfig{
			Enabled:     false,
			Label:       "default",
			TablePrefix: "pm_",
			Database: DatabaseConfig{
				Port:               3306,
				TLS:                "preferred",
				MaxConnections:     4,
				MaxIdleConnections: 2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
