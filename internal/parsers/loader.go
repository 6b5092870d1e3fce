package parsers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var errTooManyFailures = fmt.Errorf("too many failed filing files")

// Loader reads filing files from disk into a FilingSet
type Loader struct {
	config  *LoaderConfig
	decoder *Decoder
	logger  logger.Logger
}

// NewLoader creates a loader. A nil config uses DefaultLoaderConfig.
func NewLoader(config *LoaderConfig) (*Loader, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", config, err)
	}

	return &Loader{
		config:  config,
		decoder: NewDecoder(config),
		logger:  logger.GetGlobalLogger().WithComponent("filing_loader"),
	}, nil
}

// Load reads a directory of filing files or a single file
func (l *Loader) Load(ctx context.Context, path string) (*FilingSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	if info.IsDir() {
		return l.LoadDirectory(ctx, path)
	}
	return l.LoadFile(ctx, path)
}

// LoadFile reads one bundle or inline XBRL fragment. Unlike directory
// loading, a file that cannot be decoded at all is returned as an error.
func (l *Loader) LoadFile(ctx context.Context, path string) (*FilingSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set, derr := l.loadOne(path)
	if derr != nil {
		return nil, derr
	}
	if set.Len() == 0 {
		return set, errors.ValidationError(errors.CodeNoFilings, "input", path, nil)
	}
	return set, nil
}

// LoadDirectory loads every supported file in dir concurrently. Files that
// fail are collected in the result's Errors and never abort their siblings,
// unless more than MaxErrors fail.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*FilingSet, error) {
	files, err := l.listFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.ValidationError(errors.CodeNoFilings, "input", dir, nil)
	}

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "load_filings",
		Unit:        "files",
		Total:       int64(len(files)),
		LogInterval: l.config.ProgressInterval,
		Logger:      l.logger,
	})

	parts := make([]*FilingSet, len(files))
	collector := errors.NewDocumentErrorCollector(l.config.MaxErrors)
	var mutex sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.MaxConcurrentFiles)

	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			part, derr := l.loadOne(path)

			mutex.Lock()
			defer mutex.Unlock()

			if derr != nil {
				tracker.Fail()
				if !collector.Add(derr) {
					return errTooManyFailures
				}
				return nil
			}
			parts[i] = part
			tracker.Increment()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		tracker.CompleteWithError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(collector.GetSummary(), errors.CategoryParse, errors.CodeInvalidDocument,
			fmt.Sprintf("stopped loading %s after %d failed files", dir, len(collector.GetErrors())))
	}
	if err := ctx.Err(); err != nil {
		tracker.CompleteWithError(err)
		return nil, err
	}
	tracker.Complete()

	set := NewFilingSet()
	for _, part := range parts {
		set.Merge(part)
	}
	set.Errors = append(collector.GetErrors(), set.Errors...)

	l.logger.WithFields(logger.Fields{
		"directory":  dir,
		"files":      len(files),
		"periods":    len(set.Periods),
		"statements": set.Len(),
		"errors":     len(set.Errors),
	}).Info("Loaded filing directory")

	if set.Len() == 0 {
		var cause error
		if len(set.Errors) > 0 {
			cause = errors.New(errors.CategoryParse, errors.CodeInvalidDocument, errors.FormatDocumentErrorsForUser(set.Errors))
		}
		return set, errors.ValidationError(errors.CodeNoFilings, "input", dir, cause)
	}
	return set, nil
}

func (l *Loader) listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if isSupportedFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) loadOne(path string) (*FilingSet, *errors.DocumentError) {
	data, err := l.decoder.ReadFile(path)
	if err != nil {
		base, _ := errors.AsReconcilerError(err)
		return nil, &errors.DocumentError{
			ReconcilerError: base,
			Location:        &errors.DocumentContext{File: path},
			Recoverable:     true,
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return l.decoder.DecodeHTML(path, data)
	default:
		return l.decoder.DecodeFile(path, data)
	}
}

func isSupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".html", ".htm":
		return true
	default:
		return false
	}
}
