// Package cairn implements the change-detection and metadata core of a
// content-addressed deduplicating backup engine.
//
// A [Stash] is one backup target directory. It holds a metadata
// container (index.cairn) persisting every captured file snapshot, and
// a derived catalog sidecar (index.catalog) enabling fast inspection
// without decoding the container. The in-memory side is a [Store]: a
// concurrent deduplication index shared by any number of scan workers.
//
// # Quick Start
//
// Record a snapshot of a directory tree:
//
//	stash, err := cairn.Open("/backups/home")
//	if err != nil {
//	    return err
//	}
//	stats, err := cairn.Scan(ctx, stash, "/home/user", chunker)
//	if err != nil {
//	    return err
//	}
//	if err := stash.Commit(); err != nil {
//	    return err
//	}
//
// The scan consults the stash's index before reading any content: a
// file whose observable state exactly matches a prior capture is
// skipped, everything else is handed to the [Chunker] and its
// content-addressed decomposition recorded. Entry identity is
// full-value, so any metadata drift reads as a new snapshot and prior
// snapshots are never overwritten.
//
// # Scope
//
// Chunk-boundary policy, chunk storage, and encryption stay outside
// this module: implement [Chunker] to plug them in. The subpackages
// carry the layers — [core] the entry model, deduplication index, and
// field protocol; [meta] the container format; [catalog] the derived
// read-optimized snapshot.
package cairn
