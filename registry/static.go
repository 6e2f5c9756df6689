package registry

import (
	"context"
	"sync"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// StaticRegistry is an in-memory tenant and connection registry. It backs
// single-node deployments that manage overrides through the admin API and
// doubles as the registry implementation used in tests.
type StaticRegistry struct {
	mu          sync.RWMutex
	tenants     map[interfaces.TenantID]interfaces.TenantStorage
	connections map[string]interfaces.Connection
}

// NewStaticRegistry creates an empty in-memory registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		tenants:     make(map[interfaces.TenantID]interfaces.TenantStorage),
		connections: make(map[string]interfaces.Connection),
	}
}

// GetTenant returns a tenant's storage override, or ErrNotFound.
func (r *StaticRegistry) GetTenant(ctx context.Context, id interfaces.TenantID) (interfaces.TenantStorage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	override, ok := r.tenants[id]
	if !ok {
		return interfaces.TenantStorage{}, interfaces.ErrNotFound
	}
	return override, nil
}

// GetConnection resolves a connection id, or returns ErrNotFound.
func (r *StaticRegistry) GetConnection(ctx context.Context, id string) (interfaces.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	if !ok {
		return interfaces.Connection{}, interfaces.ErrNotFound
	}
	return conn, nil
}

// SetTenant registers or replaces a tenant override.
func (r *StaticRegistry) SetTenant(id interfaces.TenantID, override interfaces.TenantStorage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[id] = override
}

// RemoveTenant drops a tenant override.
func (r *StaticRegistry) RemoveTenant(id interfaces.TenantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenants, id)
}

// SetConnection registers or replaces a connection.
func (r *StaticRegistry) SetConnection(conn interfaces.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID] = conn
}

// RemoveConnection drops a connection.
func (r *StaticRegistry) RemoveConnection(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, id)
}

var (
	_ interfaces.TenantRegistry     = (*StaticRegistry)(nil)
	_ interfaces.ConnectionRegistry = (*StaticRegistry)(nil)
)
