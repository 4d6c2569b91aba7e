// Package core implements the change-detection heart of a cairn stash:
// the immutable file snapshot model, the concurrent deduplication
// index shared by scan workers, and the named-field protocol that
// persists the index into a metadata container.
//
// Entry identity is full-value: an entry matches a prior capture only
// when every attribute, including the chunk decomposition, is equal.
// Identity is realized as the deterministic CBOR encoding of the
// entry, so equality, hashing, and persistence agree byte for byte.
package core
