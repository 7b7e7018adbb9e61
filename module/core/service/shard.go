package service

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 32

// shardedMap spreads keys over independently locked shards so that
// unrelated vehicles never contend on the same mutex.
type shardedMap[V any] struct {
	shards []*shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardedMap[V any](n int) *shardedMap[V] {
	if n <= 0 {
		n = defaultShards
	}
	s := &shardedMap[V]{shards: make([]*shard[V], n)}
	for i := range s.shards {
		s.shards[i] = &shard[V]{m: make(map[string]V)}
	}
	return s
}

func (s *shardedMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *shardedMap[V]) Get(key string) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[key]
	return v, ok
}

func (s *shardedMap[V]) Set(key string, v V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[key] = v
}

func (s *shardedMap[V]) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.m, key)
}

// Update replaces the value for key with fn's result while holding the
// shard lock. Returning keep=false deletes the key.
func (s *shardedMap[V]) Update(key string, fn func(old V, ok bool) (v V, keep bool)) V {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old, ok := sh.m[key]
	v, keep := fn(old, ok)
	if keep {
		sh.m[key] = v
	} else {
		delete(sh.m, key)
	}
	return v
}

// Range calls fn for every entry until fn returns false. Each shard is
// read-locked while it is visited.
func (s *shardedMap[V]) Range(fn func(key string, v V) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, v := range sh.m {
			if !fn(k, v) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// DeleteIf removes every entry matching fn and returns how many were removed.
func (s *shardedMap[V]) DeleteIf(fn func(key string, v V) bool) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.m {
			if fn(k, v) {
				delete(sh.m, k)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *shardedMap[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// keyedMutex serialises work per key. Lock entries are reference counted
// and dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func vehicleKey(tenantID, vehicleID string) string {
	return tenantID + "\x00" + vehicleID
}
