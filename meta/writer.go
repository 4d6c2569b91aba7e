package meta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/internal/codec"
)

// Writer assembles a metadata container in memory and emits it in one
// piece. Fields are sealed by WriteField; nothing hits the output
// until Flush or WriteFile. Writers are not safe for concurrent use.
type Writer struct {
	compression CompressionTag
	fields      []sealedField
	keys        map[string]struct{}
}

// sealedField pairs a finished directory entry with its stored bytes.
type sealedField struct {
	desc FieldDesc
	data []byte
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	compression CompressionTag
}

// WriterWithCompression selects the compression for sealed payloads.
// The default is CompressionZstd. Payloads that do not shrink are
// stored raw regardless, with the directory recording CompressionNone.
func WriterWithCompression(tag CompressionTag) WriterOption {
	return func(cfg *writerConfig) {
		cfg.compression = tag
	}
}

// NewWriter returns an empty container writer.
func NewWriter(opts ...WriterOption) *Writer {
	cfg := writerConfig{compression: CompressionZstd}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{
		compression: cfg.compression,
		keys:        make(map[string]struct{}),
	}
}

// Fields returns the keys sealed so far, in write order.
func (w *Writer) Fields() []string {
	keys := make([]string, len(w.fields))
	for i, f := range w.fields {
		keys[i] = f.desc.Key
	}
	return keys
}

// WriteField seals one named field into w. fn is handed a record
// writer; every record it writes becomes part of the field payload.
// When fn returns cleanly the payload is compressed, checksummed, and
// queued for Flush. A key can be sealed at most once per container; a
// failed fn leaves the key free for another attempt.
func WriteField[T any](w *Writer, key string, fn func(core.FieldWriter[T]) error) error {
	if _, ok := w.keys[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateField, key)
	}

	var buf bytes.Buffer
	fw := &fieldWriter[T]{enc: codec.NewEncoder(&buf)}
	if err := fn(fw); err != nil {
		return err
	}
	return w.seal(key, buf.Bytes(), fw.records)
}

// fieldWriter encodes records into a field payload.
type fieldWriter[T any] struct {
	enc     *codec.Encoder
	records uint64
}

func (fw *fieldWriter[T]) WriteNext(item T) error {
	if err := fw.enc.Encode(item); err != nil {
		return fmt.Errorf("encode record %d: %w", fw.records, err)
	}
	fw.records++
	return nil
}

// seal compresses, checksums, and queues one payload.
func (w *Writer) seal(key string, raw []byte, records uint64) error {
	tag := w.compression
	stored, err := compress(raw, tag)
	if errors.Is(err, errIncompressible) {
		tag, stored = CompressionNone, raw
	} else if err != nil {
		return fmt.Errorf("seal field %q: %w", key, err)
	}

	w.fields = append(w.fields, sealedField{
		desc: FieldDesc{
			Key:         key,
			Length:      uint64(len(stored)),
			RawLength:   uint64(len(raw)),
			Records:     records,
			Compression: tag,
			Sum:         blake3.Sum256(stored),
		},
		data: stored,
	})
	w.keys[key] = struct{}{}
	return nil
}

// Flush writes the complete container to out. The writer stays intact,
// so flushing twice produces the same bytes twice.
func (w *Writer) Flush(out io.Writer) error {
	descs := make([]FieldDesc, len(w.fields))
	var off uint64
	for i := range w.fields {
		w.fields[i].desc.Offset = off
		off += w.fields[i].desc.Length
		descs[i] = w.fields[i].desc
	}

	dir, err := codec.Marshal(descs)
	if err != nil {
		return fmt.Errorf("encode container directory: %w", err)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint32(header, Version)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(dir)))

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write container header: %w", err)
	}
	if _, err := out.Write(dir); err != nil {
		return fmt.Errorf("write container directory: %w", err)
	}
	for _, f := range w.fields {
		if _, err := out.Write(f.data); err != nil {
			return fmt.Errorf("write field %q payload: %w", f.desc.Key, err)
		}
	}
	return nil
}

// WriteFile writes the container to path atomically: the bytes land in
// a temp file in the same directory, are synced, and replace path by
// rename.
func (w *Writer) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp container: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := w.Flush(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp container: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename container into place: %w", err)
	}
	committed = true
	return nil
}
