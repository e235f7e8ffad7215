package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the defaults used for job outputs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// sleep is replaced in tests.
var sleep = time.Sleep

// IsStale reports whether err is an NFS stale file handle error.
func IsStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// Retry runs fn until it succeeds, fails with a non-stale error, or the
// retries are used up. op labels logs and metrics.
func Retry(op, path string, config RetryConfig, fn func() error) error {
	backoff := config.InitialBackoff
	var err error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetriesTotal.WithLabelValues(op, metrics.RetryOutcomeRecovered).Inc()
			}
			return nil
		}
		if !IsStale(err) {
			return err
		}

		metrics.FilesystemStaleErrors.WithLabelValues(op).Inc()
		if attempt < config.MaxRetries {
			logging.Debug("%s: stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
	metrics.FilesystemRetriesTotal.WithLabelValues(op, metrics.RetryOutcomeExhausted).Inc()
	return err
}

// ReadFile is os.ReadFile with stale-handle retries.
func ReadFile(path string) ([]byte, error) {
	var data []byte
	err := Retry("read", path, DefaultRetryConfig(), func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	return data, err
}

// Rename is os.Rename with stale-handle retries.
func Rename(oldpath, newpath string) error {
	return Retry("rename", newpath, DefaultRetryConfig(), func() error {
		return os.Rename(oldpath, newpath)
	})
}

// WriteFileAtomic writes data to a temp file next to dest, sets perm and
// renames it into place, so readers see either the old file or the new one.
func WriteFileAtomic(dest string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fail(fmt.Errorf("failed to write %s: %w", dest, err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("failed to close %s: %w", dest, err))
	}
	// CreateTemp always uses 0600.
	if err := os.Chmod(tmpName, perm); err != nil {
		return fail(fmt.Errorf("failed to set mode on %s: %w", dest, err))
	}
	if err := Rename(tmpName, dest); err != nil {
		return fail(fmt.Errorf("failed to move %s into place: %w", dest, err))
	}
	return nil
}
