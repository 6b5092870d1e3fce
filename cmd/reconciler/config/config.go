// Package config turns command-line and config-file settings into the
// component configurations used by the merge pipeline.
package config

import (
	"fmt"
	"strings"

	"golang-statement-reconciler/internal/matcher"
	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/parsers"
	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/internal/reporter"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"
)

// Matching presets accepted by --matching
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetRelaxed = "relaxed"
)

// MatchingPresets lists the accepted preset names
func MatchingPresets() []string {
	return []string{PresetDefault, PresetStrict, PresetRelaxed}
}

// CreateMatchingConfig returns the preset's matching configuration with the
// section threshold overridden when threshold is positive
func CreateMatchingConfig(preset string, threshold float64) (*matcher.MatchingConfig, error) {
	var config *matcher.MatchingConfig
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", PresetDefault:
		config = matcher.DefaultMatchingConfig()
	case PresetStrict:
		config = matcher.StrictMatchingConfig()
	case PresetRelaxed:
		config = matcher.RelaxedMatchingConfig()
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", preset, nil).
			WithSuggestion(fmt.Sprintf("use one of: %s", strings.Join(MatchingPresets(), ", ")))
	}

	if threshold > 0 {
		config.SectionRatioThreshold = threshold
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "section-threshold", threshold, err)
	}
	return config, nil
}

// ParseStatementTypes resolves statement names and aliases such as
// "balance" or "cash_flow"; an empty list selects every statement type
func ParseStatementTypes(names []string) ([]models.StatementType, error) {
	if len(names) == 0 {
		return models.AllStatementTypes(), nil
	}

	seen := make(map[models.StatementType]bool)
	var out []models.StatementType
	for _, name := range names {
		st, ok := models.ParseStatementType(name)
		if !ok {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "statements", name, nil).
				WithSuggestion("use income_statement, balance_sheet or cash_flow_statement")
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out, nil
}

// CreateLoaderConfig creates the filing loader configuration
func CreateLoaderConfig(concurrency, maxErrors int, repair bool, statements []models.StatementType) (*parsers.LoaderConfig, error) {
	config := parsers.DefaultLoaderConfig()
	if concurrency > 0 {
		config.MaxConcurrentFiles = concurrency
	}
	config.MaxErrors = maxErrors
	config.RepairMalformedJSON = repair
	config.StatementTypes = statements

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", config, err)
	}
	return config, nil
}

// CreateReconcilerConfig creates the engine configuration
func CreateReconcilerConfig(matching *matcher.MatchingConfig, statements []models.StatementType, presenceCheck bool, authority string) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	config.Matching = matching
	config.StatementTypes = statements
	config.EnablePresenceCheck = presenceCheck
	if authority != "" {
		config.Authority = reconciler.AuthorityMode(authority)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", authority, err).
			WithSuggestion(fmt.Sprintf("authority must be %s or %s", reconciler.AuthorityOwnPeriod, reconciler.AuthorityNewestCovering))
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, precision int, includeStats bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))
	config.NumberPrecision = precision
	config.IncludeStats = includeStats

	switch config.Format {
	case reporter.FormatJSON, reporter.FormatYAML:
		// Structured formats always carry stats for downstream tooling
		config.IncludeStats = true
	case reporter.FormatCSV:
		config.IncludeSourceURLs = false
		config.IncludeCorrections = false
	}

	if !config.Format.IsValid() {
		return nil, errors.ExportError(errors.CodeUnsupportedFormat, format, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", config, err)
	}
	return config, nil
}

// CreateLoggerConfig picks the logger configuration for a command run.
// Machine-readable output on stdout keeps the log quiet unless verbose.
func CreateLoggerConfig(verbose bool, format string, machineOutput bool) (*logger.Config, error) {
	var config *logger.Config
	switch {
	case verbose:
		config = logger.DebugConfig()
	case machineOutput:
		config = logger.QuietConfig()
	default:
		config = logger.DefaultConfig()
		config.Level = logger.WarnLevel
	}
	if format != "" {
		config.Format = logger.Format(format)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log-format", format, err)
	}
	return config, nil
}
