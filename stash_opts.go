package cairn

import "log/slog"

// Option configures a Stash.
type Option func(*Stash)

// WithLogger sets the logger for stash and scan operations. If not
// set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stash) {
		s.logger = logger
	}
}

// WithCompression selects the container compression used by Commit.
// The default is CompressionZstd.
func WithCompression(tag CompressionTag) Option {
	return func(s *Stash) {
		s.compression = tag
	}
}

// WithoutCatalog disables the derived catalog sidecar. Commit writes
// only the container, and inspection decodes it directly.
func WithoutCatalog() Option {
	return func(s *Stash) {
		s.noCatalog = true
	}
}
