// Package cache provides the LRU-backed table the resource renewer uses
// to track every resource it has been asked to renew.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Table is an LRU-bounded map from a string key to an arbitrary tracked
// value. Bounding it protects a long-running tracker from unbounded
// growth if a network produces far more distinct keys than it cares to
// remember.
type Table[V any] struct {
	lru *lru.Cache[string, V]
}

// New returns a Table bounded to size entries.
func New[V any](size int) (*Table[V], error) {
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Table[V]{lru: c}, nil
}

// Set inserts or replaces the value for key.
func (t *Table[V]) Set(key string, v V) {
	t.lru.Add(key, v)
}

// Get retrieves the value for key, if tracked.
func (t *Table[V]) Get(key string) (V, bool) {
	return t.lru.Get(key)
}

// Delete stops tracking key.
func (t *Table[V]) Delete(key string) {
	t.lru.Remove(key)
}

// Len returns the number of tracked keys.
func (t *Table[V]) Len() int {
	return t.lru.Len()
}

// Keys returns every currently tracked key.
func (t *Table[V]) Keys() []string {
	return t.lru.Keys()
}
