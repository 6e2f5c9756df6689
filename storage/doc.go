// Package storage orchestrates binary asset persistence across
// interchangeable backends.
//
// Three adapters implement the uniform contract from the interfaces
// package:
//
//   - LocalAdapter: local filesystem, the universal fallback
//   - ObjectStoreAdapter: S3-compatible object stores (emulated
//     directories via zero-byte marker objects)
//   - CloudDriveAdapter: an OAuth-authenticated cloud-drive HTTP API with
//     chunked, concurrent, retried transfers and a TTL/LRU directory
//     existence cache
//
// # Manager
//
// Manager is the single API surface the application consumes. It resolves
// the adapter for each (tenant, content category) pair:
//
//  1. A tenant override naming a non-local backend routes through the
//     connection registry; an unresolvable or inactive connection falls
//     back to local disk.
//  2. Otherwise the global per-category configuration applies.
//  3. A cloud-drive backend without a valid credential falls back to
//     local disk.
//  4. Anything unrecognized falls back to local disk.
//
// Every fallback is logged and counted: availability is deliberately
// favored over strict adherence to the configured backend, and the only
// trace of a degraded write is operational telemetry.
//
// Resolved adapters are cached per (tenant, category) composite key and
// evicted only by the explicit Invalidate calls issued after
// configuration mutations.
//
// # Transfers
//
// The cloud-drive protocol has no native large-object support. Uploads
// split the payload into fixed-size chunks addressed by explicit byte
// ranges, dispatched to a worker pool bounded by the configured
// concurrency, and committed only once every chunk is acknowledged.
// Downloads mirror this with ranged fetches assembled in offset order.
// Transient failures retry with exponential backoff up to a bounded
// attempt count; authentication and not-found failures surface
// immediately.
package storage
