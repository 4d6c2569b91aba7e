package meta

// magic opens every metadata container file.
const magic = "CAIRNMTA"

// Version is the container format version this package writes.
const Version uint32 = 1

// headerSize covers the magic, the format version, and the directory
// length.
const headerSize = len(magic) + 4 + 4

// FieldDesc describes one field in the container directory.
type FieldDesc struct {
	// Key names the field, unique within a container.
	Key string

	// Offset locates the stored payload relative to the start of the
	// payload section (the byte after the directory).
	Offset uint64

	// Length is the stored payload length in bytes.
	Length uint64

	// RawLength is the payload length after decompression.
	RawLength uint64

	// Records counts the CBOR records in the payload.
	Records uint64

	// Compression is the algorithm the payload is stored under.
	Compression CompressionTag

	// Sum is the BLAKE3-256 checksum of the stored payload bytes.
	Sum [32]byte
}
