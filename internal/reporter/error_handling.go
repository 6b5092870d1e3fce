package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with structured errors, logging
// and fallbacks for failed formats or unwritable destinations
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	if config != nil && !config.Format.IsValid() {
		return nil, errors.ExportError(errors.CodeUnsupportedFormat, string(config.Format), nil)
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders result to writer, falling back to the console
// format when the requested format fails
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.AggregateResult, writer io.Writer) (err error) {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(errors.CodePanicRecovered, "report_generation", fmt.Errorf("%v", r))
			srg.logger.WithError(err).Error("Report generation panicked")
		}
	}()

	if err := srg.generateWithFallback(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.Debug("Report generation completed successfully")
	return nil
}

// WriteToFile renders result into path. When path cannot be written, the
// report is saved next to it with a _backup suffix and that path is returned.
func (srg *SafeReportGenerator) WriteToFile(result *reconciler.AggregateResult, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return srg.writeBackup(result, path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		if srg.isFileError(err) {
			return srg.writeBackup(result, path, err)
		}
		return "", errors.ExportError(errors.CodeWriteFailed, string(srg.config.Format), err)
	}

	genErr := srg.GenerateReportSafely(result, file)
	closeErr := file.Close()
	if genErr != nil {
		return "", genErr
	}
	if closeErr != nil {
		return "", errors.ExportError(errors.CodeWriteFailed, string(srg.config.Format), closeErr)
	}

	srg.logger.WithFields(logger.Fields{
		"file":   path,
		"format": srg.config.Format,
	}).Info("Report written")
	return path, nil
}

func (srg *SafeReportGenerator) validateInputs(result *reconciler.AggregateResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(result *reconciler.AggregateResult, writer io.Writer) error {
	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.isFileError(err) {
		return errors.ExportError(errors.CodeWriteFailed, string(srg.config.Format), err)
	}

	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(result, writer, err)
	}

	return srg.wrapGenerationError(err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result *reconciler.AggregateResult, writer io.Writer, originalErr error) error {
	fallbackConfig := srg.config.Clone()
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return nil
}

func (srg *SafeReportGenerator) writeBackup(result *reconciler.AggregateResult, originalPath string, originalErr error) (string, error) {
	backupPath := generateBackupPath(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	backupFile, err := os.Create(backupPath)
	if err != nil {
		return "", errors.ExportError(errors.CodeWriteFailed, string(srg.config.Format), originalErr)
	}
	defer backupFile.Close()

	if err := srg.GenerateReport(result, backupFile); err != nil {
		return "", errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	srg.logger.WithField("backup_file", backupPath).Warn("Report saved to backup location")
	return backupPath, nil
}

func (srg *SafeReportGenerator) isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.ExportError(errors.CodeWriteFailed, string(srg.config.Format), err)
}

// generateBackupPath turns /out/report.xlsx into /out/report_backup.xlsx
func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
