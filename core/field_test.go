package core

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadRecord = errors.New("bad record")

// memFieldWriter collects records in memory; failAfter > 0 injects a
// write failure once that many records have been accepted.
type memFieldWriter struct {
	records   []*Entry
	failAfter int
}

func (w *memFieldWriter) WriteNext(e *Entry) error {
	if w.failAfter > 0 && len(w.records) >= w.failAfter {
		return errBadRecord
	}
	w.records = append(w.records, e)
	return nil
}

// memFieldReader replays records; corruptAt >= 0 injects a decode
// failure at that position.
type memFieldReader struct {
	records   []*Entry
	pos       int
	corruptAt int
}

func newMemFieldReader(records []*Entry) *memFieldReader {
	return &memFieldReader{records: records, corruptAt: -1}
}

func (r *memFieldReader) ReadNext() (*Entry, error) {
	if r.pos == r.corruptAt {
		return nil, errBadRecord
	}
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	e := r.records[r.pos]
	r.pos++
	return e, nil
}

func TestStoreFieldKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "files", NewStore().FieldKey())
	assert.Equal(t, FilesField, NewStore().FieldKey())
}

func TestFieldRoundTrip(t *testing.T) {
	t.Parallel()

	src := NewStore()
	members := []*Entry{numberedEntry(1), numberedEntry(2), numberedEntry(3)}
	for _, e := range members {
		src.Push(e)
	}

	w := &memFieldWriter{}
	require.NoError(t, src.SerializeField(w))
	require.Len(t, w.records, 3)

	dst := NewStore()
	require.NoError(t, dst.DeserializeField(newMemFieldReader(w.records)))

	assert.Equal(t, 3, dst.Index().Len())
	for _, e := range members {
		assert.False(t, dst.HasChanged(e), "round trip must restore %s", e.Name)
	}
}

func TestFieldRoundTripEmpty(t *testing.T) {
	t.Parallel()

	src := NewStore()
	w := &memFieldWriter{}
	require.NoError(t, src.SerializeField(w))
	assert.Empty(t, w.records)

	dst := NewStore()
	require.NoError(t, dst.DeserializeField(newMemFieldReader(nil)))
	assert.Equal(t, 0, dst.Index().Len())
}

func TestDeserializeFieldCorruptRecord(t *testing.T) {
	t.Parallel()

	records := []*Entry{numberedEntry(1), numberedEntry(2), numberedEntry(3)}
	r := newMemFieldReader(records)
	r.corruptAt = 2

	dst := NewStore()
	err := dst.DeserializeField(r)
	require.ErrorIs(t, err, errBadRecord, "a corrupt record must surface, not end the stream")

	// Records decoded before the failure stay inserted.
	assert.Equal(t, 2, dst.Index().Len())
	assert.False(t, dst.HasChanged(records[0]))
	assert.False(t, dst.HasChanged(records[1]))
	assert.True(t, dst.HasChanged(records[2]))
}

func TestSerializeFieldWriterError(t *testing.T) {
	t.Parallel()

	src := NewStore()
	for i := range 5 {
		src.Push(numberedEntry(i))
	}

	w := &memFieldWriter{failAfter: 2}
	err := src.SerializeField(w)
	require.ErrorIs(t, err, errBadRecord)
	assert.Len(t, w.records, 2)
}

func TestDeserializeFieldDuplicates(t *testing.T) {
	t.Parallel()

	e := testEntry()
	dst := NewStore()
	require.NoError(t, dst.DeserializeField(newMemFieldReader([]*Entry{e, e, e})))

	assert.Equal(t, 1, dst.Index().Len(), "duplicate records collapse to one member")
}
