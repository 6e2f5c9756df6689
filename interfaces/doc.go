// Package interfaces defines the contracts and shared types of the storage
// orchestration layer, separating interface definitions from implementations.
//
// # Storage Contract
//
// Adapter: the uniform operation set every storage backend implements
// (save, get, delete, exists, public URL derivation, and the directory
// operations used to provision tenant folder hierarchies).
//
// BackendKind: a closed variant over the supported providers (local disk,
// S3-compatible object store, OAuth cloud drive). Adapter construction
// switches over it exhaustively.
//
// ContentCategory: the logical bucket an asset belongs to (image, video,
// preview, marker). Each category is independently routable to a backend.
//
// # External Collaborators
//
// TenantRegistry and ConnectionRegistry are the read-only lookup contracts
// the manager consults to honor per-tenant storage overrides. Both fail
// closed: any lookup error degrades the tenant to local storage.
//
// # Error Taxonomy
//
// ErrConfiguration is always recovered internally by falling back to local
// storage. ErrNotFound, ErrAuthentication and ErrQuotaExceeded surface to
// callers unretried. TransferError wraps a chunked transfer that exhausted
// its retry budget.
package interfaces
