// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("/backlinks/summary/live", []byte(`{"target":"a.com"}`))
	b := Key("/backlinks/summary/live", []byte(`{"target":"b.com"}`))
	c := Key("/serp/google/organic/live/advanced", []byte(`{"target":"a.com"}`))

	assert.True(t, strings.HasPrefix(a, keyPrefix))
	assert.Len(t, a, len(keyPrefix)+64)
	assert.Equal(t, a, Key("/backlinks/summary/live", []byte(`{"target":"a.com"}`)))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDisabledCache(t *testing.T) {
	rc, err := NewRedisCache(context.Background(), "", "", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rc)

	// A nil cache misses and accepts writes.
	got, ok, err := rc.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, rc.Set(context.Background(), "k", []byte(`[]`)))
	assert.NoError(t, rc.Close())
}

func TestUnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", "", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to redis at 127.0.0.1:1")
}
