package parsers

import (
	"fmt"
	"strings"
	"time"

	"golang-statement-reconciler/internal/models"
)

// LoaderConfig holds configuration for loading filing period files
type LoaderConfig struct {
	// Number of files decoded at the same time
	MaxConcurrentFiles int `json:"max_concurrent_files" yaml:"max_concurrent_files"`

	// Retry undecodable JSON after running it through a repairer
	RepairMalformedJSON bool `json:"repair_malformed_json" yaml:"repair_malformed_json"`

	// Stop loading a directory after this many failed files; zero means never
	MaxErrors int `json:"max_errors" yaml:"max_errors"`

	// How often progress is logged while loading a directory
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`

	// Statement types to keep; empty keeps all
	StatementTypes []models.StatementType `json:"statement_types,omitempty" yaml:"statement_types,omitempty"`
}

// DefaultLoaderConfig returns a configuration with standard defaults
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxConcurrentFiles:  3,
		RepairMalformedJSON: true,
		ProgressInterval:    2 * time.Second,
	}
}

// Validate checks if the loader configuration is valid
func (lc *LoaderConfig) Validate() error {
	if lc.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", lc.MaxConcurrentFiles)
	}
	if lc.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative")
	}
	if lc.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}
	for _, st := range lc.StatementTypes {
		if !st.IsValid() {
			return fmt.Errorf("invalid statement type: %s", st)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (lc *LoaderConfig) Clone() *LoaderConfig {
	c := *lc
	c.StatementTypes = append([]models.StatementType(nil), lc.StatementTypes...)
	return &c
}

// Wants reports whether documents of the statement type should be kept
func (lc *LoaderConfig) Wants(st models.StatementType) bool {
	if len(lc.StatementTypes) == 0 {
		return true
	}
	for _, s := range lc.StatementTypes {
		if s == st {
			return true
		}
	}
	return false
}

// bundleMetaKeys are top-level bundle fields that never hold a statement
var bundleMetaKeys = map[string]bool{
	"period":     true,
	"year":       true,
	"ticker":     true,
	"source_url": true,
	"filing_url": true,
	"years":      true,
	"status":     true,
}

// statementKey resolves a bundle key to a statement type
func statementKey(key string) (models.StatementType, bool) {
	return models.ParseStatementType(strings.TrimSpace(key))
}
