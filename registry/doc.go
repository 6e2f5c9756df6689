// Package registry implements the tenant and connection lookup contracts
// the storage manager consults for per-tenant overrides.
//
// StaticRegistry keeps overrides and connections in memory, serving
// single-node deployments and tests. VaultConnectionRegistry resolves
// connection credentials from HashiCorp Vault KV v2 so secrets never
// live in the storage configuration file.
//
// Both implementations are read-only from the manager's point of view:
// any lookup error makes the manager fail closed onto local storage.
package registry
