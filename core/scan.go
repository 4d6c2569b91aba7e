package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cairnstore/cairn/core/internal/platform"
	"github.com/cairnstore/cairn/internal/codec"
)

// Chunker turns file content into content-addressed chunk references.
//
// Implementations own chunk-boundary policy and the physical storage of
// chunk bytes; the scan pipeline only records the references they
// return. Chunk is called once per changed file with the content
// positioned at the start.
type Chunker interface {
	Chunk(ctx context.Context, r io.Reader) ([]Chunk, error)
}

// ScanStats summarizes one scan run.
type ScanStats struct {
	// Scanned counts regular files visited.
	Scanned uint64

	// Stored counts entries pushed into the index.
	Stored uint64

	// Skipped counts files whose exact state was already captured.
	Skipped uint64

	// Errors counts files abandoned after a per-file failure.
	Errors uint64

	// Bytes totals the content size handed to the chunker.
	Bytes uint64
}

// Scan walks the tree under dir and records a snapshot of every regular
// file into the store.
//
// Files whose observable state matches a previously captured entry are
// skipped without re-reading content; everything else is chunked and
// pushed. Per-file failures (unreadable file, pre-epoch mtime, chunker
// error) are logged and counted, never fatal, unless ScanWithFailFast
// is set. Symlinks and other irregular files are ignored.
func Scan(ctx context.Context, store Store, dir string, chunker Chunker, opts ...ScanOption) (*ScanStats, error) {
	cfg := scanConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if chunker == nil {
		return nil, errors.New("cairn: scan requires a chunker")
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	sc := &scanner{
		cfg:     cfg,
		store:   store,
		chunker: chunker,
		prior:   priorByAttrs(store),
	}
	sc.log().Info("scan started", "dir", dir, "workers", cfg.workerCount())

	paths := make(chan string)
	eg, ctx := errgroup.WithContext(ctx)

	for range cfg.workerCount() {
		eg.Go(func() error {
			for path := range paths {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := sc.scanFile(ctx, root, path); err != nil {
					if cfg.failFast {
						return err
					}
					sc.errored.Add(1)
					sc.log().Warn("skipping file", "path", path, "error", err)
				}
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(paths)
		return fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if cfg.failFast {
					return walkErr
				}
				sc.errored.Add(1)
				sc.log().Warn("skipping path", "path", path, "error", walkErr)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				sc.log().Debug("ignoring irregular file", "path", path)
				return nil
			}
			select {
			case paths <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats := sc.stats()
	sc.log().Info("scan finished",
		"scanned", stats.Scanned,
		"stored", stats.Stored,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"bytes", stats.Bytes)
	return stats, nil
}

// scanner holds the shared state of one scan run.
type scanner struct {
	cfg     scanConfig
	store   Store
	chunker Chunker

	// prior maps the chunk-free attribute key of every entry captured
	// by earlier runs to that entry, so an unchanged file can adopt its
	// known chunk list instead of being re-read. Read-only once built.
	prior map[string]*Entry

	scanned atomic.Uint64
	stored  atomic.Uint64
	skipped atomic.Uint64
	errored atomic.Uint64
	bytes   atomic.Uint64
}

// log returns the logger, falling back to a discard logger if nil.
func (sc *scanner) log() *slog.Logger {
	if sc.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return sc.cfg.logger
}

func (sc *scanner) stats() *ScanStats {
	return &ScanStats{
		Scanned: sc.scanned.Load(),
		Stored:  sc.stored.Load(),
		Skipped: sc.skipped.Load(),
		Errors:  sc.errored.Load(),
		Bytes:   sc.bytes.Load(),
	}
}

// scanFile snapshots a single regular file into the store.
func (sc *scanner) scanFile(ctx context.Context, root *os.Root, path string) error {
	f, err := platform.OpenFileNoFollow(root, filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer f.Close()

	sc.scanned.Add(1)
	entry, err := NewEntryFromFile(f, path)
	if err != nil {
		return err
	}

	if prior, ok := sc.prior[attrsKey(entry)]; ok {
		resumed := entry.WithChunks(prior.Chunks)
		if !sc.store.HasChanged(resumed) {
			sc.skipped.Add(1)
			sc.log().Debug("unchanged", "path", path)
			return nil
		}
	}

	chunks, err := sc.chunker.Chunk(ctx, f)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", path, err)
	}

	sc.store.Push(entry.WithChunks(chunks))
	sc.stored.Add(1)
	sc.bytes.Add(entry.Size)
	sc.log().Debug("stored", "path", path, "size", entry.Size, "chunks", len(chunks))
	return nil
}

// priorByAttrs indexes the store's current members by their chunk-free
// attribute key.
func priorByAttrs(s Store) map[string]*Entry {
	prior := make(map[string]*Entry, s.Index().Len())
	for e := range s.Index().All() {
		prior[attrsKey(e)] = e
	}
	return prior
}

// attrsKey is the canonical encoding of an entry with its chunk list
// stripped: the identity of the observable file state alone.
func attrsKey(e *Entry) string {
	k := *e
	k.Chunks = nil
	b, err := codec.Marshal(&k)
	if err != nil {
		panic("cairn: encode attrs key: " + err.Error())
	}
	return string(b)
}
