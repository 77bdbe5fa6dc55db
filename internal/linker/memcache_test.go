// SPDX-License-Identifier: MIT

package linker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualaoi/aoid/internal/cache"
)

func TestMemCachedLinker(t *testing.T) {
	store := cache.New(0)
	t.Cleanup(store.Close)

	inner := &countingLinker{}
	cached := NewMemCached(inner, store, time.Minute)

	got, err := cached.Link(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "LINKED-ABC", got)
	assert.EqualValues(t, 1, inner.calls.Load())

	got, err = cached.Link(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "LINKED-ABC", got)
	assert.EqualValues(t, 1, inner.calls.Load(), "second call served from cache")
}

func TestMemCachedLinkerErrorNotCached(t *testing.T) {
	store := cache.New(0)
	t.Cleanup(store.Close)

	cached := NewMemCached(Noop{}, store, time.Minute)
	_, err := cached.Link(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 0, store.Len())
}
