package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

func TestStaticRegistry_TenantLifecycle(t *testing.T) {
	reg := NewStaticRegistry()
	ctx := context.Background()

	_, err := reg.GetTenant(ctx, "acme")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	override := interfaces.TenantStorage{
		Backend:      interfaces.BackendCloudDrive,
		ConnectionID: "conn-1",
		RootFolderID: "acme-root",
	}
	reg.SetTenant("acme", override)

	got, err := reg.GetTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, override, got)

	reg.RemoveTenant("acme")
	_, err = reg.GetTenant(ctx, "acme")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestStaticRegistry_ConnectionLifecycle(t *testing.T) {
	reg := NewStaticRegistry()
	ctx := context.Background()

	_, err := reg.GetConnection(ctx, "conn-1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	conn := interfaces.Connection{
		ID:     "conn-1",
		Active: true,
		Credentials: interfaces.Credentials{
			OAuthToken: "tok",
			BasePath:   "cms",
		},
	}
	reg.SetConnection(conn)

	got, err := reg.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, conn, got)

	reg.RemoveConnection("conn-1")
	_, err = reg.GetConnection(ctx, "conn-1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestStaticRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewStaticRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := interfaces.TenantID(fmt.Sprintf("tenant-%d", i))
			reg.SetTenant(id, interfaces.TenantStorage{ConnectionID: fmt.Sprintf("conn-%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			reg.GetTenant(ctx, interfaces.TenantID(fmt.Sprintf("tenant-%d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		got, err := reg.GetTenant(ctx, interfaces.TenantID(fmt.Sprintf("tenant-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("conn-%d", i), got.ConnectionID)
	}
}
