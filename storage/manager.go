package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/pixelforge/cms-storage-backend/config"
	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// adapterKey identifies one cached adapter instance. A single composite
// key avoids the two-level map lookups that made invalidation scoping
// error-prone.
type adapterKey struct {
	tenant   interfaces.TenantID
	category interfaces.ContentCategory
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// Config is the runtime-mutable storage configuration.
	Config *config.Store
	// Tenants and Connections are the external lookup collaborators.
	// Either may be nil, disabling per-tenant overrides.
	Tenants     interfaces.TenantRegistry
	Connections interfaces.ConnectionRegistry
	// Observer receives operation telemetry. Nil means no metrics.
	Observer Observer

	// LocalRoot and LocalURLBase configure the local-disk fallback.
	LocalRoot    string
	LocalURLBase string
	// CloudDriveBaseURL is the drive API root used for globally
	// configured cloud-drive routing.
	CloudDriveBaseURL string
}

// Manager orchestrates storage: it resolves the correct adapter for each
// (tenant, content category) pair, applies the deterministic fallback
// policy, caches adapter instances, and exposes the single API surface
// the rest of the application consumes.
//
// The fallback policy trades strict correctness of the configured backend
// for availability: any misconfiguration degrades the operation to local
// disk with a loud log line instead of failing the caller.
type Manager struct {
	cfg      *config.Store
	tenants  interfaces.TenantRegistry
	conns    interfaces.ConnectionRegistry
	observer Observer
	log      *slog.Logger

	local             *LocalAdapter
	cloudDriveBaseURL string

	mu       sync.RWMutex
	adapters map[adapterKey]interfaces.Adapter
}

// NewManager creates a storage manager. The local fallback adapter is
// constructed eagerly: if even local disk is unusable the process cannot
// meaningfully serve storage and construction fails.
func NewManager(opts ManagerOptions, log *slog.Logger) (*Manager, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: manager requires a configuration store", interfaces.ErrConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}

	local, err := NewLocalAdapter(opts.LocalRoot, opts.LocalURLBase, log)
	if err != nil {
		return nil, fmt.Errorf("failed to construct local fallback adapter: %w", err)
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Manager{
		cfg:               opts.Config,
		tenants:           opts.Tenants,
		conns:             opts.Connections,
		observer:          observer,
		log:               log,
		local:             local,
		cloudDriveBaseURL: opts.CloudDriveBaseURL,
		adapters:          make(map[adapterKey]interfaces.Adapter),
	}, nil
}

// Save persists content and returns its public URL.
func (m *Manager) Save(ctx context.Context, data []byte, logicalPath string, category interfaces.ContentCategory, tenant interfaces.TenantID) (string, error) {
	adapter := m.resolve(ctx, category, tenant)

	start := time.Now()
	url, err := adapter.Save(ctx, data, logicalPath)
	m.observer.RecordOperation("save", adapter.Kind(), time.Since(start), len(data), err)
	return url, err
}

// Get retrieves content by logical path.
func (m *Manager) Get(ctx context.Context, logicalPath string, category interfaces.ContentCategory, tenant interfaces.TenantID) ([]byte, error) {
	adapter := m.resolve(ctx, category, tenant)

	start := time.Now()
	data, err := adapter.Get(ctx, logicalPath)
	m.observer.RecordOperation("get", adapter.Kind(), time.Since(start), len(data), err)
	return data, err
}

// Delete removes content, reporting whether it existed.
func (m *Manager) Delete(ctx context.Context, logicalPath string, category interfaces.ContentCategory, tenant interfaces.TenantID) (bool, error) {
	adapter := m.resolve(ctx, category, tenant)

	start := time.Now()
	existed, err := adapter.Delete(ctx, logicalPath)
	m.observer.RecordOperation("delete", adapter.Kind(), time.Since(start), 0, err)
	return existed, err
}

// Exists reports whether content is present.
func (m *Manager) Exists(ctx context.Context, logicalPath string, category interfaces.ContentCategory, tenant interfaces.TenantID) (bool, error) {
	adapter := m.resolve(ctx, category, tenant)

	start := time.Now()
	exists, err := adapter.Exists(ctx, logicalPath)
	m.observer.RecordOperation("exists", adapter.Kind(), time.Since(start), 0, err)
	return exists, err
}

// PublicURL derives the access URL for a logical path. Resolution may
// consult the registries but URL derivation itself performs no I/O.
func (m *Manager) PublicURL(ctx context.Context, logicalPath string, category interfaces.ContentCategory, tenant interfaces.TenantID) string {
	return m.resolve(ctx, category, tenant).PublicURL(logicalPath)
}

// CategoryReport is the provisioning outcome for one category.
type CategoryReport struct {
	Category interfaces.ContentCategory `json:"category"`
	Backend  interfaces.BackendKind     `json:"backend"`
	OK       bool                       `json:"ok"`
	Error    string                     `json:"error,omitempty"`
}

// Report summarizes a tenant provisioning or verification run.
type Report struct {
	Tenant  interfaces.TenantID `json:"tenant"`
	Results []CategoryReport    `json:"results"`
}

// Succeeded reports whether every category succeeded.
func (r Report) Succeeded() bool {
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}

// Provision creates the tenant folder hierarchy for each category on its
// resolved backend. Used by tenant-onboarding flows ahead of first upload.
func (m *Manager) Provision(ctx context.Context, tenant interfaces.TenantID, categories []interfaces.ContentCategory) Report {
	report := Report{Tenant: tenant}
	for _, category := range categories {
		adapter := m.resolve(ctx, category, tenant)
		result := CategoryReport{Category: category, Backend: adapter.Kind(), OK: true}

		if _, err := adapter.CreateDirectory(ctx, tenantDir(tenant, category)); err != nil {
			result.OK = false
			result.Error = err.Error()
			m.log.Error("Failed to provision tenant folder",
				slog.String("tenant", string(tenant)),
				slog.String("category", category.String()),
				slog.String("backend", adapter.Kind().String()),
				"err", err)
		}
		report.Results = append(report.Results, result)
	}
	return report
}

// Verify checks that each category's tenant folder exists on its resolved
// backend.
func (m *Manager) Verify(ctx context.Context, tenant interfaces.TenantID, categories []interfaces.ContentCategory) Report {
	report := Report{Tenant: tenant}
	for _, category := range categories {
		adapter := m.resolve(ctx, category, tenant)
		result := CategoryReport{Category: category, Backend: adapter.Kind()}

		exists, err := adapter.DirectoryExists(ctx, tenantDir(tenant, category))
		switch {
		case err != nil:
			result.Error = err.Error()
		case !exists:
			result.Error = "folder missing"
		default:
			result.OK = true
		}
		report.Results = append(report.Results, result)
	}
	return report
}

// Invalidate evicts the cached adapter for one (tenant, category) pair.
// Callers must invalidate after any configuration mutation affecting the
// scope; cached adapters are never expired implicitly.
func (m *Manager) Invalidate(tenant interfaces.TenantID, category interfaces.ContentCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.adapters, adapterKey{tenant: tenant, category: category})
}

// InvalidateTenant evicts every cached adapter for a tenant.
func (m *Manager) InvalidateTenant(tenant interfaces.TenantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.adapters {
		if key.tenant == tenant {
			delete(m.adapters, key)
		}
	}
}

// InvalidateCategory evicts every cached adapter for a category across
// all tenants.
func (m *Manager) InvalidateCategory(category interfaces.ContentCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.adapters {
		if key.category == category {
			delete(m.adapters, key)
		}
	}
}

// InvalidateAll evicts the whole adapter cache.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters = make(map[adapterKey]interfaces.Adapter)
}

// resolve returns the adapter for a (tenant, category) pair, constructing
// and caching it on first use. Resolution always succeeds: every failure
// path lands on the local fallback adapter, so the same invalid input
// deterministically yields the same fallback decision.
func (m *Manager) resolve(ctx context.Context, category interfaces.ContentCategory, tenant interfaces.TenantID) interfaces.Adapter {
	key := adapterKey{tenant: tenant, category: category}

	m.mu.RLock()
	adapter, ok := m.adapters[key]
	m.mu.RUnlock()
	if ok {
		return adapter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if adapter, ok := m.adapters[key]; ok {
		return adapter
	}

	adapter = m.buildAdapter(ctx, category, tenant)
	m.adapters[key] = adapter
	return adapter
}

// buildAdapter evaluates the resolution policy in order: tenant override,
// then global per-category configuration, then the local fallback.
func (m *Manager) buildAdapter(ctx context.Context, category interfaces.ContentCategory, tenant interfaces.TenantID) interfaces.Adapter {
	if tenant != "" && m.tenants != nil {
		if adapter, done := m.buildTenantAdapter(ctx, category, tenant); done {
			return adapter
		}
	}
	return m.buildGlobalAdapter(category)
}

// buildTenantAdapter resolves a tenant override. The boolean reports
// whether the override decided the outcome; false means "no override,
// continue with global configuration".
func (m *Manager) buildTenantAdapter(ctx context.Context, category interfaces.ContentCategory, tenant interfaces.TenantID) (interfaces.Adapter, bool) {
	override, err := m.tenants.GetTenant(ctx, tenant)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, false
		}
		// Lookup failure fails closed: local, never an error.
		return m.fallback(tenant, category, "tenant lookup failed", err), true
	}

	if override.Backend == interfaces.BackendLocal {
		return nil, false
	}

	if m.conns == nil {
		return m.fallback(tenant, category, "no connection registry configured", nil), true
	}

	conn, err := m.conns.GetConnection(ctx, override.ConnectionID)
	if err != nil {
		return m.fallback(tenant, category, "connection unresolved", err), true
	}
	if !conn.Active {
		return m.fallback(tenant, category, "connection inactive", nil), true
	}

	switch override.Backend {
	case interfaces.BackendObjectStore:
		adapter, err := NewObjectStoreAdapter(ObjectStoreOptions{
			Endpoint:  conn.Credentials.Endpoint,
			AccessKey: conn.Credentials.AccessKey,
			SecretKey: conn.Credentials.SecretKey,
			Bucket:    conn.Credentials.Bucket,
			Prefix:    override.RootFolderID,
		}, m.log)
		if err != nil {
			return m.fallback(tenant, category, "tenant object store misconfigured", err), true
		}
		return adapter, true

	case interfaces.BackendCloudDrive:
		adapter, err := m.newCloudDrive(conn.Credentials.OAuthToken,
			path.Join(conn.Credentials.BasePath, override.RootFolderID))
		if err != nil {
			return m.fallback(tenant, category, "tenant cloud drive misconfigured", err), true
		}
		return adapter, true

	default:
		return m.fallback(tenant, category, "unknown backend kind", nil), true
	}
}

// buildGlobalAdapter resolves the global per-category configuration.
func (m *Manager) buildGlobalAdapter(category interfaces.ContentCategory) interfaces.Adapter {
	kind := m.cfg.BackendFor(category)

	switch kind {
	case interfaces.BackendLocal:
		return m.local

	case interfaces.BackendObjectStore:
		settings := m.cfg.ObjectStore()
		if !settings.Enabled {
			return m.fallback("", category, "object store disabled", nil)
		}
		adapter, err := NewObjectStoreAdapter(ObjectStoreOptions{
			Endpoint:   settings.Endpoint,
			AccessKey:  settings.AccessKey,
			SecretKey:  settings.SecretKey,
			Bucket:     settings.Bucket,
			Secure:     settings.Secure,
			PublicBase: settings.PublicBase,
		}, m.log)
		if err != nil {
			return m.fallback("", category, "object store misconfigured", err)
		}
		return adapter

	case interfaces.BackendCloudDrive:
		drive := m.cfg.CloudDrive()
		if !drive.Enabled || drive.OAuthToken == "" {
			return m.fallback("", category, "cloud drive credential missing", nil)
		}
		adapter, err := m.newCloudDrive(drive.OAuthToken, m.cfg.CategoryFor(category).CloudDrive.BasePath)
		if err != nil {
			return m.fallback("", category, "cloud drive misconfigured", err)
		}
		return adapter

	default:
		return m.fallback("", category, "unknown backend kind", nil)
	}
}

func (m *Manager) newCloudDrive(token, basePath string) (*CloudDriveAdapter, error) {
	transfer := m.cfg.Transfer()
	return NewCloudDriveAdapter(CloudDriveOptions{
		BaseURL:           m.cloudDriveBaseURL,
		OAuthToken:        token,
		BasePath:          basePath,
		ChunkSize:         transfer.ChunkSize(),
		UploadConcurrency: transfer.UploadConcurrency,
		RequestTimeout:    transfer.RequestTimeout(),
		PoolSize:          transfer.PoolSize,
		PoolMaxSize:       transfer.PoolMaxSize,
		CacheTTL:          transfer.CacheTTL(),
		CacheCapacity:     transfer.CacheCapacity,
	}, m.log)
}

// fallback returns the local adapter, logging the degradation loudly.
// The operation succeeds on local disk; the asset is simply not where
// configuration expected, which operators must be able to see.
func (m *Manager) fallback(tenant interfaces.TenantID, category interfaces.ContentCategory, reason string, err error) interfaces.Adapter {
	m.observer.RecordFallback(reason)
	m.log.Warn("Falling back to local storage",
		slog.String("tenant", string(tenant)),
		slog.String("category", category.String()),
		slog.String("reason", reason),
		"err", err)
	return m.local
}

// tenantDir is the folder hierarchy provisioned per tenant and category.
func tenantDir(tenant interfaces.TenantID, category interfaces.ContentCategory) string {
	return path.Join("tenants", string(tenant), category.String())
}
