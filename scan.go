package cairn

import (
	"context"

	"github.com/cairnstore/cairn/core"
)

// Scan walks the tree under dir and records a snapshot of every regular
// file into the stash's index.
//
// Files whose observable state matches a previously captured entry are
// skipped without re-reading content; everything else is chunked and
// pushed. Per-file failures are logged and counted, never fatal, unless
// ScanWithFailFast is set. Scan only mutates the in-memory index; call
// [Stash.Commit] to persist the run.
func Scan(ctx context.Context, stash *Stash, dir string, chunker Chunker, opts ...ScanOption) (*ScanStats, error) {
	if stash.logger != nil {
		opts = append([]ScanOption{core.ScanWithLogger(stash.logger)}, opts...)
	}
	return core.Scan(ctx, stash.store, dir, chunker, opts...)
}
