package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ifgstack/internal/logging"
)

// Result contains the outcome of a cleanup pass.
type Result struct {
	Removed []string
	Skipped []string
	Errors  []Error
}

// Error pairs a path with its cleanup error.
type Error struct {
	Path  string
	Error error
}

// Success removes each consumed product directory and each date-pair symlink
// from workdir. Missing entries are skipped. Date-pair entries that are not
// symlinks are left in place. Failures are collected, never returned: the
// bundle is already complete when this runs.
func Success(ctx context.Context, workdir string, products, datePairs []string, logger *slog.Logger) Result {
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "cleanup"))
	var result Result

	for _, product := range products {
		path := resolve(workdir, product)
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		result.record(logger, path, os.RemoveAll(path))
	}
	for _, pair := range datePairs {
		path := resolve(workdir, pair)
		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err == nil && info.Mode()&fs.ModeSymlink == 0 {
			logger.Debug("date-pair entry is not a symlink; leaving it",
				logging.String("path", path),
			)
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err == nil {
			err = os.Remove(path)
		}
		result.record(logger, path, err)
	}

	logger.Info("inputs cleaned up",
		logging.String(logging.FieldEventType, "cleanup_complete"),
		logging.Int("removed", len(result.Removed)),
		logging.Int("skipped", len(result.Skipped)),
		logging.Int("failed", len(result.Errors)),
	)
	return result
}

func (r *Result) record(logger *slog.Logger, path string, err error) {
	if err != nil {
		r.Errors = append(r.Errors, Error{Path: path, Error: err})
		logging.WarnWithContext(logger, "failed to remove consumed input", "cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check working directory permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return
	}
	r.Removed = append(r.Removed, path)
}

// CleanStalePartials removes bundle staging directories (".<id>.partial")
// in workdir that are older than maxAge.
func CleanStalePartials(ctx context.Context, workdir string, maxAge time.Duration, logger *slog.Logger) Result {
	var result Result
	workdir = strings.TrimSpace(workdir)
	if workdir == "" {
		return result
	}
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "cleanup"))

	entries, err := os.ReadDir(workdir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, Error{Path: workdir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".partial") {
			continue
		}
		path := filepath.Join(workdir, name)
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, Error{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.record(logger, path, err)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale staging directory",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func resolve(workdir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(workdir, name)
}
