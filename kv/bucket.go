// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides logical bucket for kv store.
// All keys read or written through a bucket are prefixed by the bucket name.
type Bucket string

// Key returns the full key of the given key in the bucket.
func (b Bucket) Key(key []byte) []byte {
	return append(append(make([]byte, 0, len(b)+len(key)), b...), key...)
}

// with calls fn with the prefixed key held in a pooled buffer.
// The callee must copy the key if it retains it.
func (b Bucket) with(key []byte, fn func(full []byte)) {
	buf := keyPool.Get().(*[]byte)
	*buf = append(append((*buf)[:0], b...), key...)
	fn(*buf)
	keyPool.Put(buf)
}

var keyPool = sync.Pool{
	New: func() any { return new([]byte) },
}

type bucketGetter struct {
	b   Bucket
	src Getter
}

func (g *bucketGetter) Get(key []byte) (val []byte, err error) {
	g.b.with(key, func(full []byte) { val, err = g.src.Get(full) })
	return
}

func (g *bucketGetter) Has(key []byte) (has bool, err error) {
	g.b.with(key, func(full []byte) { has, err = g.src.Has(full) })
	return
}

func (g *bucketGetter) IsNotFound(err error) bool { return g.src.IsNotFound(err) }

type bucketPutter struct {
	b   Bucket
	src Putter
}

func (p *bucketPutter) Put(key, val []byte) (err error) {
	p.b.with(key, func(full []byte) { err = p.src.Put(full, val) })
	return
}

func (p *bucketPutter) Delete(key []byte) (err error) {
	p.b.with(key, func(full []byte) { err = p.src.Delete(full) })
	return
}

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &bucketGetter{b, src}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &bucketPutter{b, src}
}

// NewBulk creates a bucket bulk from the source bulk.
func (b Bucket) NewBulk(src Bulk) Bulk {
	return &struct {
		Putter
		EnableAutoFlushFunc
		WriteFunc
	}{
		b.NewPutter(src),
		src.EnableAutoFlush,
		src.Write,
	}
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &struct {
		Getter
		Putter
		SnapshotFunc
		BulkFunc
		IterateFunc
	}{
		b.NewGetter(src),
		b.NewPutter(src),
		func() Snapshot {
			snap := src.Snapshot()
			return &struct {
				Getter
				ReleaseFunc
			}{b.NewGetter(snap), snap.Release}
		},
		func() Bulk { return b.NewBulk(src.Bulk()) },
		b.iterate(src),
	}
}

// iterate maps r into the bucket and strips the bucket from the yielded keys.
func (b Bucket) iterate(src Store) IterateFunc {
	return func(r Range) Iterator {
		full := Range{Start: b.Key(r.Start)}
		if len(r.Limit) == 0 {
			full.Limit = util.BytesPrefix([]byte(b)).Limit
		} else {
			full.Limit = b.Key(r.Limit)
		}
		iter := src.Iterate(full)
		return &struct {
			NextFunc
			KeyFunc
			ValueFunc
			ReleaseFunc
			ErrorFunc
		}{
			iter.Next,
			func() []byte { return iter.Key()[len(b):] },
			iter.Value,
			iter.Release,
			iter.Error,
		}
	}
}
