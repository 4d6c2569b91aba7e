package meta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/internal/codec"
)

// Reader gives access to the fields of a parsed container. Readers are
// safe for concurrent use once constructed.
type Reader struct {
	payload []byte
	descs   []FieldDesc
	byKey   map[string]int
}

// Open reads and parses the container at path.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// NewReader parses a container from data. The reader keeps a reference
// to data; callers must not modify it afterwards.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), headerSize)
	}
	if string(data[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(data[len(magic):])
	if version != Version {
		return nil, fmt.Errorf("%w: found %d, supported %d", ErrVersion, version, Version)
	}
	dirLen := binary.LittleEndian.Uint32(data[len(magic)+4:])
	if uint64(len(data)) < uint64(headerSize)+uint64(dirLen) {
		return nil, fmt.Errorf("%w: directory of %d bytes exceeds file", ErrTruncated, dirLen)
	}

	var descs []FieldDesc
	if err := codec.Unmarshal(data[headerSize:headerSize+int(dirLen)], &descs); err != nil {
		return nil, fmt.Errorf("%w: container directory: %v", ErrCorrupt, err)
	}

	payload := data[headerSize+int(dirLen):]
	byKey := make(map[string]int, len(descs))
	for i, desc := range descs {
		if _, ok := byKey[desc.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, desc.Key)
		}
		end := desc.Offset + desc.Length
		if end < desc.Offset || end > uint64(len(payload)) {
			return nil, fmt.Errorf("%w: field %q payload [%d, %d) exceeds %d payload bytes",
				ErrTruncated, desc.Key, desc.Offset, end, len(payload))
		}
		byKey[desc.Key] = i
	}

	return &Reader{payload: payload, descs: descs, byKey: byKey}, nil
}

// Fields returns the field keys in directory order.
func (r *Reader) Fields() []string {
	keys := make([]string, len(r.descs))
	for i, desc := range r.descs {
		keys[i] = desc.Key
	}
	return keys
}

// Directory returns a copy of the parsed field descriptors.
func (r *Reader) Directory() []FieldDesc {
	return slices.Clone(r.descs)
}

// Len returns the record count of a field.
func (r *Reader) Len(key string) (uint64, error) {
	i, ok := r.byKey[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrFieldNotFound, key)
	}
	return r.descs[i].Records, nil
}

// ReadField verifies, decompresses, and decodes one field, handing fn
// a record reader. The record reader returns io.EOF after the last
// record; any other error from it means the field is corrupt, and the
// two are never conflated. Checksum and size verification run before
// fn does.
func ReadField[T any](r *Reader, key string, fn func(core.FieldReader[T]) error) error {
	i, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, key)
	}
	desc := r.descs[i]

	stored := r.payload[desc.Offset : desc.Offset+desc.Length]
	if blake3.Sum256(stored) != desc.Sum {
		return fmt.Errorf("%w: field %q", ErrChecksum, key)
	}

	raw, err := decompress(stored, desc.Compression, int(desc.RawLength))
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}

	fr := &fieldReader[T]{
		dec:   codec.NewDecoder(bytes.NewReader(raw)),
		field: key,
		total: desc.Records,
	}
	return fn(fr)
}

// Verify checks every field of the container: payload checksum,
// decompressed size, and that each declared record decodes. Record
// contents are not interpreted. It returns the first failure found.
func (r *Reader) Verify() error {
	for _, desc := range r.descs {
		err := ReadField(r, desc.Key, func(fr core.FieldReader[codec.RawMessage]) error {
			for {
				if _, err := fr.ReadNext(); errors.Is(err, io.EOF) {
					return nil
				} else if err != nil {
					return err
				}
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fieldReader decodes the records of one field. The directory's record
// count decides where the stream ends, so a decode failure before that
// point is reported as corruption, never as a clean end.
type fieldReader[T any] struct {
	dec   *codec.Decoder
	field string
	read  uint64
	total uint64
}

func (fr *fieldReader[T]) ReadNext() (T, error) {
	var item T
	if fr.read >= fr.total {
		return item, io.EOF
	}
	if err := fr.dec.Decode(&item); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: field %q record %d: %v", ErrCorrupt, fr.field, fr.read, err)
	}
	fr.read++
	return item, nil
}
