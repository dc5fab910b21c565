package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateInput()...)
	errors = append(errors, c.validateConnections()...)
	errors = append(errors, c.validateClustering()...)
	errors = append(errors, c.validateCentrality()...)

	if c.Results.Enabled {
		errors = append(errors, c.validateResults()...)
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateInput() ValidationErrors {
	var errors ValidationErrors

	if c.Input.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "input.dir",
			Message: "input directory is required",
		})
	}

	if c.Input.Pattern != "" {
		if _, err := filepath.Match(c.Input.Pattern, "probe.csv"); err != nil {
			errors = append(errors, ValidationError{
				Field:   "input.pattern",
				Message: fmt.Sprintf("invalid glob: %v", err),
			})
		}
	}

	if c.Input.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "input.workers",
			Message: "workers must be positive",
		})
	}

	return errors
}

func (c *Config) validateConnections() ValidationErrors {
	var errors ValidationErrors

	if c.Connections.WeakBucketLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "connections.weak_bucket_limit",
			Message: "weak_bucket_limit cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateClustering() ValidationErrors {
	var errors ValidationErrors

	validAlgorithms := map[string]bool{AlgorithmLouvain: true, AlgorithmLabelPropagation: true, "": true}
	if !validAlgorithms[c.Clustering.Algorithm] {
		errors = append(errors, ValidationError{
			Field:   "clustering.algorithm",
			Message: "algorithm must be 'louvain' or 'label_propagation'",
		})
	}

	if c.Clustering.Resolution <= 0 {
		errors = append(errors, ValidationError{
			Field:   "clustering.resolution",
			Message: "resolution must be positive",
		})
	}

	if c.Clustering.MaxLevels <= 0 {
		errors = append(errors, ValidationError{
			Field:   "clustering.max_levels",
			Message: "max_levels must be positive",
		})
	}

	if c.Clustering.MaxNodes < 0 {
		errors = append(errors, ValidationError{
			Field:   "clustering.max_nodes",
			Message: "max_nodes cannot be negative",
		})
	}

	if c.Clustering.MaxIterations <= 0 {
		errors = append(errors, ValidationError{
			Field:   "clustering.max_iterations",
			Message: "max_iterations must be positive",
		})
	}

	return errors
}

func (c *Config) validateCentrality() ValidationErrors {
	var errors ValidationErrors

	if c.Centrality.ExactMaxNodes < 0 {
		errors = append(errors, ValidationError{
			Field:   "centrality.exact_max_nodes",
			Message: "exact_max_nodes cannot be negative",
		})
	}

	if c.Centrality.Samples <= 0 {
		errors = append(errors, ValidationError{
			Field:   "centrality.samples",
			Message: "samples must be positive",
		})
	}

	if c.Centrality.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "centrality.workers",
			Message: "workers must be positive",
		})
	}

	return errors
}

func (c *Config) validateResults() ValidationErrors {
	var errors ValidationErrors
	db := &c.Results.Database

	if c.Results.Label == "" {
		errors = append(errors, ValidationError{
			Field:   "results.label",
			Message: "label is required when results store is enabled",
		})
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "results.database.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "results.database.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "results.database.user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "results.database.database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "results.database.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "results.database.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "results.database.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
