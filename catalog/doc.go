//go:generate flatc --go --go-namespace fb -o internal schema/catalog.fbs

// Package catalog builds and reads the stash's derived index snapshot.
//
// A catalog is a FlatBuffers buffer holding every entry of a metadata
// container's files field, sorted by name for O(log n) lookups and
// prefix scans without decoding the container. It carries the BLAKE3
// sum of the container payload it was built from, so readers can tell
// a stale catalog from a fresh one.
//
// Accessors return read-only views that alias catalog data.
package catalog
