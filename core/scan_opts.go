package core

import (
	"log/slog"
	"runtime"
)

// scanConfig holds configuration for a scan run.
type scanConfig struct {
	workers  int
	failFast bool
	logger   *slog.Logger
}

// ScanOption configures a scan run.
type ScanOption func(*scanConfig)

// ScanWithWorkers sets the number of files processed in parallel.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func ScanWithWorkers(n int) ScanOption {
	return func(cfg *scanConfig) {
		cfg.workers = n
	}
}

// ScanWithFailFast makes the first per-file failure abort the scan.
// Without it, failed files are logged, counted, and skipped.
func ScanWithFailFast() ScanOption {
	return func(cfg *scanConfig) {
		cfg.failFast = true
	}
}

// ScanWithLogger sets the logger for scan progress and per-file errors.
// If not set, logging is disabled.
func ScanWithLogger(logger *slog.Logger) ScanOption {
	return func(cfg *scanConfig) {
		cfg.logger = logger
	}
}

// workerCount resolves the configured worker setting to a concrete count.
func (cfg *scanConfig) workerCount() int {
	if cfg.workers < 0 {
		return 1
	}
	if cfg.workers == 0 {
		n := runtime.GOMAXPROCS(0)
		if n < 1 {
			return 1
		}
		return n
	}
	return cfg.workers
}
