package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCacheGetSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "seed")
	ctx := context.Background()

	c, err := OpenDisk(dir)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, filepath.Join(dir, diskFileName), c.Path())
	assert.Equal(t, BackendDisk, c.Backend())

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("one")))
	require.NoError(t, c.Set(ctx, "k", []byte("two")))

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("two"), v)
}

func TestDiskCachePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := OpenDisk(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", []byte("kept")))
	require.NoError(t, c.Close())

	c, err = OpenDisk(dir)
	require.NoError(t, err)
	defer c.Close()

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("kept"), v)
}
