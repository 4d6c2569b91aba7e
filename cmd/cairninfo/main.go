// Command cairninfo prints the committed state of a stash or a raw
// metadata container: aggregate statistics, entry listings, and
// checksum verification.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cairnstore/cairn"
	"github.com/cairnstore/cairn/meta"
)

type config struct {
	stashDir  string
	container string
	list      bool
	prefix    string
	name      string
	verify    bool
}

func main() {
	log.SetFlags(0)
	if err := run(parseFlags()); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.stashDir, "stash", "", "stash directory to inspect")
	flag.StringVar(&cfg.container, "container", "", "raw metadata container file to inspect")
	flag.BoolVar(&cfg.list, "list", false, "list captured entries")
	flag.StringVar(&cfg.prefix, "prefix", "", "restrict -list to names with this prefix")
	flag.StringVar(&cfg.name, "name", "", "print full detail for the named entry")
	flag.BoolVar(&cfg.verify, "verify", false, "verify checksums instead of printing stats")
	flag.Parse()
	return cfg
}

func run(cfg config) error {
	switch {
	case cfg.stashDir != "" && cfg.container != "":
		return errors.New("-stash and -container are mutually exclusive")
	case cfg.stashDir != "":
		return runStash(cfg)
	case cfg.container != "":
		return runContainer(cfg)
	default:
		return errors.New("one of -stash or -container is required")
	}
}

func runStash(cfg config) error {
	if cfg.verify {
		return verifyStash(cfg.stashDir)
	}

	res, err := cairn.Inspect(cfg.stashDir)
	if err != nil {
		return err
	}

	switch {
	case cfg.name != "":
		return entryDetail(slices.Collect(res.Entries()), cfg.name)
	case cfg.list:
		return listEntries(slices.Collect(res.Entries()), cfg.prefix)
	default:
		return stashStats(cfg.stashDir, res)
	}
}

func runContainer(cfg config) error {
	r, err := meta.Open(cfg.container)
	if err != nil {
		return err
	}

	if cfg.verify {
		if err := r.Verify(); err != nil {
			return fmt.Errorf("%s: %w", cfg.container, err)
		}
		fmt.Printf("%s: %d field(s) OK\n", cfg.container, len(r.Directory()))
		return nil
	}

	switch {
	case cfg.name != "":
		entries, err := containerEntries(r)
		if err != nil {
			return err
		}
		return entryDetail(entries, cfg.name)
	case cfg.list:
		entries, err := containerEntries(r)
		if err != nil {
			return err
		}
		return listEntries(entries, cfg.prefix)
	default:
		return containerStats(r)
	}
}

// verifyStash checks every field checksum in the stash's container and
// reports whether the catalog sidecar is usable.
func verifyStash(dir string) error {
	path := filepath.Join(dir, cairn.ContainerName)
	r, err := meta.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(dir); statErr != nil {
			return statErr
		}
		fmt.Println("empty stash: nothing committed yet")
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.Verify(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("%s: %d field(s) OK\n", path, len(r.Directory()))

	res, err := cairn.Inspect(dir)
	if err != nil {
		return err
	}
	if res.CatalogFresh() {
		fmt.Println("catalog: fresh")
	} else {
		fmt.Println("catalog: stale or missing")
	}
	return nil
}

func stashStats(dir string, res *cairn.InspectResult) error {
	freshness := "stale or missing"
	if res.CatalogFresh() {
		freshness = "fresh"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "stash\t%s\n", dir)
	fmt.Fprintf(w, "files\t%d\n", res.FileCount())
	fmt.Fprintf(w, "total size\t%d\n", res.TotalSize())
	fmt.Fprintf(w, "chunk refs\t%d\n", res.ChunkCount())
	fmt.Fprintf(w, "unique chunks\t%d\n", res.UniqueChunks())
	fmt.Fprintf(w, "catalog\t%s\n", freshness)
	return w.Flush()
}

func containerStats(r *meta.Reader) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tRECORDS\tCOMPRESSION\tSTORED\tRAW\tSUM")
	for _, d := range r.Directory() {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%x\n",
			d.Key, d.Records, d.Compression, d.Length, d.RawLength, d.Sum[:8])
	}
	return w.Flush()
}

func listEntries(entries []*cairn.Entry, prefix string) error {
	filtered := entries[:0:0]
	for _, e := range entries {
		if prefix == "" || strings.HasPrefix(e.Name, prefix) {
			filtered = append(filtered, e)
		}
	}
	slices.SortFunc(filtered, func(a, b *cairn.Entry) int {
		return strings.Compare(a.Name, b.Name)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODE\tMTIME\tCHUNKS")
	for _, e := range filtered {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n",
			e.Name, e.Size, e.Mode, e.ModTime().UTC().Format(time.RFC3339), len(e.Chunks))
	}
	return w.Flush()
}

func entryDetail(entries []*cairn.Entry, name string) error {
	found := false
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		if found {
			fmt.Println()
		}
		found = true

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "name\t%s\n", e.Name)
		fmt.Fprintf(w, "size\t%d\n", e.Size)
		fmt.Fprintf(w, "mode\t%s\n", e.Mode)
		fmt.Fprintf(w, "owner\t%d:%d\n", e.UID, e.GID)
		fmt.Fprintf(w, "readonly\t%t\n", e.ReadOnly)
		fmt.Fprintf(w, "mtime\t%s\n", e.ModTime().UTC().Format(time.RFC3339Nano))
		fmt.Fprintf(w, "chunks\t%d\n", len(e.Chunks))
		for _, c := range e.Chunks {
			fmt.Fprintf(w, "\t%d\t%d\t%s\n", c.Offset, c.Pointer.Size, c.Pointer.Digest)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("no entry named %q", name)
	}
	return nil
}

// containerEntries decodes the file snapshots field of a raw container.
func containerEntries(r *meta.Reader) ([]*cairn.Entry, error) {
	var entries []*cairn.Entry
	err := meta.ReadField(r, cairn.FilesField, func(fr cairn.FieldReader[*cairn.Entry]) error {
		for {
			e, err := fr.ReadNext()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
