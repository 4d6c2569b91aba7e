// Package meta reads and writes cairn metadata containers.
//
// A container aggregates named fields. Each field is an independently
// compressed, checksummed stream of CBOR records described by a
// directory at the front of the file. Record types are opaque to the
// container: WriteField and ReadField are generic, and the field
// protocol in package core is the only contract between a field's
// producer and its storage.
package meta
