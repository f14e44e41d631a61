// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRUInvalidSize(t *testing.T) {
	_, err := NewLRU(0)
	assert.Error(t, err)
}

func TestLRUGetOrLoad(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	loads := 0
	loader := func(key any) (any, bool, error) {
		loads++
		return key.(int) * 10, key.(int) > 0, nil
	}

	v, err := c.GetOrLoad(1, loader)
	assert.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = c.GetOrLoad(1, loader)
	assert.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, loads)

	// not cacheable, loaded every time
	_, _ = c.GetOrLoad(0, loader)
	_, _ = c.GetOrLoad(0, loader)
	assert.Equal(t, 3, loads)
	assert.False(t, c.Contains(0))

	_, hit, miss := c.Stats().Stats()
	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(3), miss)
}

func TestLRUGetOrLoadError(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	loadErr := errors.New("disk failure")
	_, err = c.GetOrLoad(1, func(any) (any, bool, error) {
		return nil, false, loadErr
	})
	assert.Equal(t, loadErr, err)
	assert.False(t, c.Contains(1))
}
