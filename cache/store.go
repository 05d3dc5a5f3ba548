package cache

import (
	"sync"

	cachekey "github.com/always-cache/preload/pkg/cache-key"
)

// Store is the in-memory preload cache.
// It maps the key of a primary request to a bucket, which in turn maps the key of every
// preloaded request to the stored value (usually a response handle).
//
// Entries never expire. A bucket lives until Clear is called for its primary key.
// A (primary, preload) pair holds at most one value: the first writer wins.
//
// Store is safe for concurrent use.
type Store[V any] struct {
	mutex   *sync.RWMutex
	buckets map[cachekey.Key]map[cachekey.Key]V
}

func NewStore[V any]() *Store[V] {
	return &Store[V]{
		mutex:   &sync.RWMutex{},
		buckets: make(map[cachekey.Key]map[cachekey.Key]V),
	}
}

// Get returns the value stored for the pair, if any.
func (s *Store[V]) Get(primary, preload cachekey.Key) (V, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.buckets[primary][preload]
	return v, ok
}

// Put stores v for the pair unless a value is already stored.
// It returns the value that is stored after the call, and whether it is v.
func (s *Store[V]) Put(primary, preload cachekey.Key, v V) (V, bool) {
	return s.LoadOrCreate(primary, preload, func() V { return v })
}

// LoadOrCreate returns the value stored for the pair. If there is none, it calls create
// and stores its result, all while holding the lock; create must therefore not block
// or call back into the store.
// The boolean is true if the value was created by this call.
func (s *Store[V]) LoadOrCreate(primary, preload cachekey.Key, create func() V) (V, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	bucket, ok := s.buckets[primary]
	if !ok {
		bucket = make(map[cachekey.Key]V)
		s.buckets[primary] = bucket
	}
	if v, ok := bucket[preload]; ok {
		return v, false
	}
	v := create()
	bucket[preload] = v
	return v, true
}

// Clear removes the whole bucket of the given primary key.
func (s *Store[V]) Clear(primary cachekey.Key) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.buckets, primary)
}

// Buckets returns the number of primary keys with a bucket.
func (s *Store[V]) Buckets() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.buckets)
}

// Len returns the number of stored values over all buckets.
func (s *Store[V]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	n := 0
	for _, bucket := range s.buckets {
		n += len(bucket)
	}
	return n
}
