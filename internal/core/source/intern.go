package source

import (
	"hash/maphash"
	"sync"
)

// Process-wide interning tables for strings and paths. Interned values
// compare and hash by pointer identity; entries are immutable once
// inserted and are never removed. The tables are sharded so concurrent
// indexing of many files doesn't serialize on one lock.

const internShards = 32

// InternedString is a process-wide unique handle for a string value.
type InternedString struct{ s string }

// String returns the interned value.
func (s *InternedString) String() string { return s.s }

// InternedPath is a process-wide unique handle for an abstract path.
// Paths are interned as given; callers normalize before interning.
type InternedPath struct{ p string }

// String returns the interned path.
func (p *InternedPath) String() string { return p.p }

type internTable[T any] struct {
	seed   maphash.Seed
	shards [internShards]struct {
		mu sync.Mutex
		m  map[string]*T
	}
}

func newInternTable[T any]() *internTable[T] {
	t := &internTable[T]{seed: maphash.MakeSeed()}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*T)
	}
	return t
}

func (t *internTable[T]) intern(key string, mk func(string) *T) *T {
	shard := &t.shards[maphash.String(t.seed, key)%internShards]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if v, ok := shard.m[key]; ok {
		return v
	}
	v := mk(key)
	shard.m[key] = v
	return v
}

var (
	stringTable = newInternTable[InternedString]()
	pathTable   = newInternTable[InternedPath]()
)

// InternString returns the unique handle for s.
func InternString(s string) *InternedString {
	return stringTable.intern(s, func(s string) *InternedString { return &InternedString{s} })
}

// InternPath returns the unique handle for p.
func InternPath(p string) *InternedPath {
	return pathTable.intern(p, func(p string) *InternedPath { return &InternedPath{p} })
}
