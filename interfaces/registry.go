package interfaces

import "context"

// TenantStorage is a per-tenant storage override. A tenant whose override
// points at a non-Local backend routes through the referenced connection;
// if the connection cannot be resolved or is inactive the manager falls
// back to local storage instead of failing the operation.
type TenantStorage struct {
	// Backend the tenant's assets should be routed to.
	Backend BackendKind `json:"backend"`
	// ConnectionID is an opaque identifier resolved through the
	// connection registry to concrete credentials.
	ConnectionID string `json:"connectionId"`
	// RootFolderID optionally isolates the tenant under a dedicated
	// folder on the remote backend.
	RootFolderID string `json:"rootFolderId,omitempty"`
}

// Credentials are the concrete provider secrets a connection resolves to.
// Only the fields relevant to the connection's backend kind are set.
type Credentials struct {
	// OAuthToken authenticates cloud-drive connections.
	OAuthToken string `json:"oauthToken,omitempty"`
	// BasePath is the cloud-drive folder the connection is rooted at.
	BasePath string `json:"basePath,omitempty"`

	// Endpoint, AccessKey, SecretKey and Bucket address an
	// S3-compatible object store.
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
}

// Connection is a resolved storage connection. Inactive connections must
// never be used for tenant traffic.
type Connection struct {
	ID          string      `json:"id"`
	Active      bool        `json:"active"`
	Credentials Credentials `json:"credentials"`
}

// TenantRegistry looks up per-tenant storage overrides. It is an external
// collaborator; the manager treats it as read-only and fails closed
// (falls back to local storage) on any lookup error.
type TenantRegistry interface {
	// GetTenant returns the storage override for a tenant, or
	// ErrNotFound when the tenant has none.
	GetTenant(ctx context.Context, id TenantID) (TenantStorage, error)
}

// ConnectionRegistry resolves opaque connection identifiers to concrete
// credentials. Like TenantRegistry it is read-only and fail-closed.
type ConnectionRegistry interface {
	// GetConnection resolves a connection id, or returns ErrNotFound
	// when the id is unknown.
	GetConnection(ctx context.Context, id string) (Connection, error)
}
