package core

import (
	"errors"
	"fmt"
	"io"
)

// FilesField is the name under which a Store persists itself as one
// field of a metadata container. Stable across format versions.
const FilesField = "files"

// FieldWriter is the sink for the records of one named container field.
// Implementations own the physical encoding; collections only hand over
// one item at a time.
type FieldWriter[T any] interface {
	// WriteNext encodes one record onto the field's stream.
	WriteNext(item T) error
}

// FieldReader is the source of the records of one named container field.
type FieldReader[T any] interface {
	// ReadNext decodes the next record. It returns io.EOF once no
	// records remain; any other error marks a corrupt or undecodable
	// record. The two conditions are never conflated.
	ReadNext() (T, error)
}

// FieldKey returns the container field name owned by the store.
func (s Store) FieldKey() string {
	return FilesField
}

// SerializeField writes one record per entry in snapshot iteration
// order, stopping at the first writer error.
func (s Store) SerializeField(w FieldWriter[*Entry]) error {
	for e := range s.idx.All() {
		if err := w.WriteNext(e); err != nil {
			return fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}
	return nil
}

// DeserializeField reads records until exhaustion, pushing each decoded
// entry into the index.
//
// io.EOF from the reader ends the load normally. Any other error aborts
// the loop and is returned; entries decoded before the failure remain
// in the index, so the caller decides whether to keep or discard the
// partially loaded store.
func (s Store) DeserializeField(r FieldReader[*Entry]) error {
	for {
		e, err := r.ReadNext()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load field %q: %w", FilesField, err)
		}
		s.Push(e)
	}
}
