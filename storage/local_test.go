package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLocalAdapter(t *testing.T) *LocalAdapter {
	t.Helper()
	adapter, err := NewLocalAdapter(t.TempDir(), "/assets", testLogger())
	require.NoError(t, err)
	return adapter
}

func TestLocalAdapter_SaveGetRoundTrip(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	ctx := context.Background()

	payload := []byte("hero-shot bytes")
	url, err := adapter.Save(ctx, payload, "tenants/acme/image/hero.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/assets/tenants/acme/image/hero.jpg", url)

	got, err := adapter.Get(ctx, "tenants/acme/image/hero.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalAdapter_GetMissingReturnsNotFound(t *testing.T) {
	adapter := newTestLocalAdapter(t)

	_, err := adapter.Get(context.Background(), "no/such/file.bin")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestLocalAdapter_DeleteIsIdempotent(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	ctx := context.Background()

	_, err := adapter.Save(ctx, []byte("x"), "a/b.txt")
	require.NoError(t, err)

	removed, err := adapter.Delete(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = adapter.Delete(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.False(t, removed, "second delete reports nothing removed")
}

func TestLocalAdapter_Exists(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	ctx := context.Background()

	found, err := adapter.Exists(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = adapter.Save(ctx, []byte("x"), "a/b.txt")
	require.NoError(t, err)

	found, err = adapter.Exists(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLocalAdapter_Directories(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	ctx := context.Background()

	ok, err := adapter.DirectoryExists(ctx, "tenants/acme")
	require.NoError(t, err)
	assert.False(t, ok)

	created, err := adapter.CreateDirectory(ctx, "tenants/acme/image")
	require.NoError(t, err)
	assert.True(t, created)

	// Creating again is a no-op, not an error.
	created, err = adapter.CreateDirectory(ctx, "tenants/acme/image")
	require.NoError(t, err)
	assert.True(t, created)

	ok, err = adapter.DirectoryExists(ctx, "tenants/acme/image")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = adapter.CreateDirectory(ctx, "tenants/acme/video")
	require.NoError(t, err)

	dirs, err := adapter.ListDirectories(ctx, "tenants/acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"image", "video"}, dirs)
}

func TestLocalAdapter_ListMissingBaseReturnsEmpty(t *testing.T) {
	adapter := newTestLocalAdapter(t)

	dirs, err := adapter.ListDirectories(context.Background(), "not/here")
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestLocalAdapter_RejectsPathTraversal(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	ctx := context.Background()

	_, err := adapter.Save(ctx, []byte("x"), "../outside.txt")
	assert.Error(t, err)

	_, err = adapter.Get(ctx, "a/../../outside.txt")
	assert.Error(t, err)
}

func TestLocalAdapter_PublicURLNeedsNoIO(t *testing.T) {
	adapter := newTestLocalAdapter(t)

	// URL derivation works for content that was never saved.
	assert.Equal(t, "/assets/x/y.png", adapter.PublicURL("x/y.png"))
	assert.Equal(t, "/assets/x/y.png", adapter.PublicURL("/x/y.png"))
}

func TestLocalAdapter_Kind(t *testing.T) {
	adapter := newTestLocalAdapter(t)
	assert.Equal(t, interfaces.BackendLocal, adapter.Kind())
}
