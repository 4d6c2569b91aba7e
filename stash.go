package cairn

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/cairnstore/cairn/catalog"
	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/meta"
)

// File names inside a stash directory.
const (
	// ContainerName is the metadata container holding the files field.
	ContainerName = "index.cairn"

	// CatalogName is the derived read-optimized catalog sidecar.
	CatalogName = "index.catalog"
)

// Stash is one backup target directory.
//
// Opening a stash loads the committed container, if any, into a fresh
// deduplication index; Commit persists the index back. Between the two,
// any number of scan workers share the stash's [Store] handle. The
// container is authoritative; the catalog sidecar is derived from it on
// every commit and rebuilt whenever it goes stale.
type Stash struct {
	dir         string
	store       core.Store
	compression CompressionTag
	noCatalog   bool
	logger      *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Stash) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Open opens the stash directory dir.
//
// When a committed container exists its files field is loaded into the
// store; a corrupt container or field surfaces as an error, never as a
// silently empty index. A directory without a container starts empty.
func Open(dir string, opts ...Option) (*Stash, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cairn: %s is not a directory", dir)
	}

	s := &Stash{
		dir:         dir,
		store:       core.NewStore(),
		compression: CompressionZstd,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(s.containerPath())
	if errors.Is(err, fs.ErrNotExist) {
		s.log().Debug("no container, starting empty", "dir", dir)
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	r, err := meta.NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("open stash %s: %w", dir, err)
	}
	if err := meta.ReadField(r, s.store.FieldKey(), s.store.DeserializeField); err != nil {
		return nil, fmt.Errorf("open stash %s: %w", dir, err)
	}

	s.log().Debug("loaded container", "dir", dir, "entries", s.store.Index().Len())
	return s, nil
}

// Dir returns the stash directory path.
func (s *Stash) Dir() string {
	return s.dir
}

// Store returns the shared deduplication handle used by scan pipelines.
// Every call returns a handle to the same underlying index.
func (s *Stash) Store() Store {
	return s.store
}

// Commit serializes the files field into a metadata container and
// atomically replaces the stash's on-disk state, then rebuilds the
// catalog sidecar unless disabled. The in-memory index is unaffected
// and the stash stays usable for further scans and commits.
func (s *Stash) Commit() error {
	w := meta.NewWriter(meta.WriterWithCompression(s.compression))
	if err := meta.WriteField(w, s.store.FieldKey(), s.store.SerializeField); err != nil {
		return fmt.Errorf("commit stash: %w", err)
	}

	var buf bytes.Buffer
	if err := w.Flush(&buf); err != nil {
		return fmt.Errorf("commit stash: %w", err)
	}
	if err := writeFileAtomic(s.containerPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("commit stash: write container: %w", err)
	}

	if !s.noCatalog {
		sum := blake3.Sum256(buf.Bytes())
		entries := slices.Collect(s.store.Index().All())
		if err := writeFileAtomic(s.catalogPath(), catalog.Build(entries, sum[:])); err != nil {
			return fmt.Errorf("commit stash: write catalog: %w", err)
		}
	}

	s.syncDir()
	s.log().Info("committed stash",
		"dir", s.dir,
		"entries", s.store.Index().Len(),
		"catalog", !s.noCatalog)
	return nil
}

func (s *Stash) containerPath() string {
	return filepath.Join(s.dir, ContainerName)
}

func (s *Stash) catalogPath() string {
	return filepath.Join(s.dir, CatalogName)
}

// syncDir flushes directory metadata so a commit's renames are durable.
// Platforms that cannot fsync a directory handle degrade to best-effort.
func (s *Stash) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		s.log().Debug("directory sync skipped", "dir", s.dir, "error", err)
		return
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		s.log().Debug("directory sync skipped", "dir", s.dir, "error", err)
	}
}

// writeFileAtomic writes data to a temp file in the target's directory,
// syncs it, and renames it over target, so readers never observe a
// partial file.
func writeFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".cairn-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
