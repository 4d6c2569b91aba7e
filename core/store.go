package core

import (
	"iter"
	"sync"

	"github.com/zeebo/xxh3"
)

// indexShards is the fixed shard count of an Index. Power of two so
// shard selection reduces to a mask.
const indexShards = 64

// Index is a concurrent set of entries with full-value membership.
//
// The set is sharded across independently locked maps keyed by the
// canonical entry encoding; entries are never removed. An Index is
// shared by every Store handle that wraps it and lives as long as any
// handle remains.
type Index struct {
	shards [indexShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*Entry
}

func newIndex() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].m = make(map[string]*Entry)
	}
	return idx
}

// shardFor picks the shard holding key.
func (idx *Index) shardFor(key string) *shard {
	return &idx.shards[xxh3.HashString(key)&(indexShards-1)]
}

// contains reports whether an entry with the given canonical key is a member.
func (idx *Index) contains(key string) bool {
	s := idx.shardFor(key)
	s.mu.RLock()
	_, ok := s.m[key]
	s.mu.RUnlock()
	return ok
}

// insert adds e under key if absent. Inserting an existing key is a no-op.
func (idx *Index) insert(key string, e *Entry) {
	s := idx.shardFor(key)
	s.mu.Lock()
	if _, ok := s.m[key]; !ok {
		s.m[key] = e
	}
	s.mu.Unlock()
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	n := 0
	for i := range idx.shards {
		s := &idx.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// All returns an iterator over the entries in no particular order.
//
// Iteration observes a weakly consistent snapshot: every entry present
// before the call is yielded exactly once; entries inserted while
// iterating may or may not appear. Each shard is copied under its read
// lock so no lock is held while the caller runs.
func (idx *Index) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for i := range idx.shards {
			s := &idx.shards[i]
			s.mu.RLock()
			members := make([]*Entry, 0, len(s.m))
			for _, e := range s.m {
				members = append(members, e)
			}
			s.mu.RUnlock()

			for _, e := range members {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Store is a lightweight handle over one shared Index.
//
// Copying a Store yields a second handle to the same index, never a
// copy of its contents; all copies are equally privileged to query and
// insert. The zero Store is not usable, construct with NewStore.
type Store struct {
	idx *Index
}

// NewStore returns a handle over a fresh empty index.
func NewStore() Store {
	return Store{idx: newIndex()}
}

// Index exposes the underlying set for read-only iteration and sizing.
func (s Store) Index() *Index {
	return s.idx
}

// HasChanged reports whether no member of the index equals e.
//
// Because equality covers every field including the chunk list, a true
// result means this exact file state has not been captured, not merely
// that the path is new. Safe for concurrent use; never blocks on I/O.
func (s Store) HasChanged(e *Entry) bool {
	return !s.idx.contains(entryKey(e))
}

// Push inserts e unless an equal entry is already present.
//
// Pushing an equal entry again is a no-op, and no signal reports
// whether the set grew; callers that need to know check HasChanged
// first. Safe for concurrent use.
func (s Store) Push(e *Entry) {
	s.idx.insert(entryKey(e), e)
}
