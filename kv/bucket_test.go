// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errNotFound = errors.New("not found")

type mem map[string]string

func (m mem) Get(k []byte) ([]byte, error) {
	if v, ok := m[string(k)]; ok {
		return []byte(v), nil
	}
	return nil, errNotFound
}

func (m mem) Has(k []byte) (bool, error) {
	_, ok := m[string(k)]
	return ok, nil
}

func (m mem) Put(k, v []byte) error {
	m[string(k)] = string(v)
	return nil
}

func (m mem) Delete(k []byte) error {
	delete(m, string(k))
	return nil
}

func (m mem) IsNotFound(err error) bool {
	return err == errNotFound
}

func TestBucketGetter(t *testing.T) {
	m := mem{"k1": "v1", "k2": "v2"}

	tests := []struct {
		b    Bucket
		key  string
		want string
	}{
		{Bucket(""), "k1", "v1"},
		{Bucket(""), "k2", "v2"},
		{Bucket("k"), "k1", ""},
		{Bucket("k"), "1", "v1"},
		{Bucket("k"), "2", "v2"},
		{Bucket("k1"), "", "v1"},
	}
	for _, tt := range tests {
		g := tt.b.NewGetter(m)
		got, err := g.Get([]byte(tt.key))
		has, _ := g.Has([]byte(tt.key))
		if tt.want == "" {
			assert.True(t, g.IsNotFound(err), "%q/%q", tt.b, tt.key)
			assert.False(t, has)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, string(got), "%q/%q", tt.b, tt.key)
		assert.True(t, has)
	}
}

func TestBucket_GetterIsNotFound(t *testing.T) {
	m := mem{}
	g := Bucket("s").NewGetter(m)

	_, err := g.Get([]byte("missing"))
	assert.True(t, g.IsNotFound(err))
}

func TestBucket_Putter(t *testing.T) {
	m := mem{}
	p := Bucket("m").NewPutter(m)

	assert.Nil(t, p.Put([]byte("best_block"), []byte("v")))
	assert.Equal(t, mem{"mbest_block": "v"}, m)

	assert.Nil(t, p.Delete([]byte("best_block")))
	assert.Empty(t, m)
}

func TestBucket_Key(t *testing.T) {
	b := Bucket("s")
	key := []byte{1, 2}

	assert.Equal(t, []byte{'s', 1, 2}, b.Key(key))
	// the input is never aliased
	assert.Equal(t, []byte{1, 2}, key)
}
