// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides in-memory caches used in front of the kv store.
package cache

import lru "github.com/hashicorp/golang-lru"

// LRU a LRU cache extends golang-lru, recording hit/miss stats.
type LRU struct {
	*lru.Cache
	stats Stats
}

// NewLRU create a LRU cache instance.
// maxSize should be > 0, or an error returned.
func NewLRU(maxSize int) (*LRU, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{Cache: cache}, nil
}

// Loader defines loader to load value.
// The second return value reports whether the loaded value may be cached.
type Loader func(key any) (any, bool, error)

// GetOrLoad first try to get from cache, do load if missed.
func (l *LRU) GetOrLoad(key any, loader Loader) (any, error) {
	if v, ok := l.Get(key); ok {
		l.stats.Hit()
		return v, nil
	}
	l.stats.Miss()

	v, cacheable, err := loader(key)
	if err != nil {
		return nil, err
	}
	if cacheable {
		l.Add(key, v)
	}
	return v, nil
}

// Stats returns the hit/miss stats of GetOrLoad calls.
func (l *LRU) Stats() *Stats {
	return &l.stats
}
