package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// BackendKind identifies which concrete storage provider an asset is routed to.
// It is a closed set: adapter construction switches over it exhaustively, so
// adding a backend is a compile-time-checked change.
type BackendKind int

const (
	// BackendLocal stores assets on the local filesystem. It is the
	// universal fallback and must always be constructible.
	BackendLocal BackendKind = iota
	// BackendObjectStore stores assets in an S3-compatible object store.
	BackendObjectStore
	// BackendCloudDrive stores assets through an OAuth-authenticated
	// cloud-drive HTTP API using chunked transfers.
	BackendCloudDrive
)

// String returns the canonical lowercase tag used in configuration and logs.
func (k BackendKind) String() string {
	switch k {
	case BackendLocal:
		return "local"
	case BackendObjectStore:
		return "objectstore"
	case BackendCloudDrive:
		return "clouddrive"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseBackendKind converts a configuration tag to a BackendKind.
// Unknown tags are an error so that misconfiguration is caught at the
// single dispatch point rather than deep inside an adapter.
func ParseBackendKind(s string) (BackendKind, error) {
	switch s {
	case "local":
		return BackendLocal, nil
	case "objectstore", "s3":
		return BackendObjectStore, nil
	case "clouddrive":
		return BackendCloudDrive, nil
	default:
		return BackendLocal, fmt.Errorf("%w: unknown backend kind %q", ErrConfiguration, s)
	}
}

// MarshalJSON encodes the kind as its canonical tag.
func (k BackendKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a canonical tag, rejecting unknown values.
func (k *BackendKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBackendKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ContentCategory is the logical bucket an asset belongs to. Each category
// has an independently configurable backend.
type ContentCategory int

const (
	// CategoryImage holds primary images.
	CategoryImage ContentCategory = iota
	// CategoryVideo holds video assets.
	CategoryVideo
	// CategoryPreview holds derived preview files.
	CategoryPreview
	// CategoryMarker holds generated tracking-marker files.
	CategoryMarker
)

// Categories lists every content category, in stable order. Used when
// provisioning tenant folder hierarchies across all categories.
var Categories = []ContentCategory{CategoryImage, CategoryVideo, CategoryPreview, CategoryMarker}

// String returns the canonical category tag.
func (c ContentCategory) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryVideo:
		return "video"
	case CategoryPreview:
		return "preview"
	case CategoryMarker:
		return "marker"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ParseContentCategory converts a category tag to a ContentCategory.
func ParseContentCategory(s string) (ContentCategory, error) {
	switch s {
	case "image":
		return CategoryImage, nil
	case "video":
		return CategoryVideo, nil
	case "preview":
		return CategoryPreview, nil
	case "marker":
		return CategoryMarker, nil
	default:
		return CategoryImage, fmt.Errorf("unknown content category %q", s)
	}
}

// MarshalJSON encodes the category as its canonical tag.
func (c ContentCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a canonical category tag.
func (c *ContentCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseContentCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TenantID identifies an isolated customer organization. The zero value
// means "no tenant": global configuration applies.
type TenantID string

var (
	// ErrNotFound is returned when the requested object or directory does
	// not exist in the resolved backend.
	ErrNotFound = errors.New("object not found")

	// ErrConfiguration is returned when an adapter cannot be constructed
	// from the supplied settings (missing credentials, unknown backend).
	// The manager recovers from it by falling back to local storage; it
	// is never surfaced to end callers.
	ErrConfiguration = errors.New("storage misconfigured")

	// ErrAuthentication is returned when the provider rejects the
	// configured credentials. It is surfaced and never retried.
	ErrAuthentication = errors.New("storage authentication rejected")

	// ErrQuotaExceeded is returned when the provider reports a capacity
	// or rate limit. It is surfaced immediately.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// TransferError reports a chunked transfer that failed after exhausting its
// retry budget. It wraps the last underlying cause.
type TransferError struct {
	Op       string // "upload" or "download"
	Path     string // logical path being transferred
	Offset   int64  // byte offset of the failing chunk
	Attempts int    // attempts made before giving up
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s of %s failed at offset %d after %d attempts: %v",
		e.Op, e.Path, e.Offset, e.Attempts, e.Err)
}

// Unwrap allows errors.Is/As to reach the underlying cause.
func (e *TransferError) Unwrap() error { return e.Err }

// Adapter is the uniform operation set every storage backend implements.
// Implementations are safe for concurrent use; they hold no mutable state
// shared across tenants.
type Adapter interface {
	// Save writes content at the logical path, creating intermediate
	// directories as needed, and returns a URL callers can later use to
	// fetch the content.
	Save(ctx context.Context, data []byte, logicalPath string) (string, error)

	// Get retrieves content by logical path. Returns ErrNotFound if the
	// path does not exist.
	Get(ctx context.Context, logicalPath string) ([]byte, error)

	// Delete removes content. It is idempotent: deleting an absent path
	// returns false without an error.
	Delete(ctx context.Context, logicalPath string) (bool, error)

	// Exists reports whether content is present at the logical path.
	Exists(ctx context.Context, logicalPath string) (bool, error)

	// PublicURL derives the access URL for a logical path without a
	// network round-trip.
	PublicURL(logicalPath string) string

	// CreateDirectory provisions a directory (and parents). It is
	// idempotent: an already-present directory is not an error.
	CreateDirectory(ctx context.Context, path string) (bool, error)

	// DirectoryExists reports whether a directory is present.
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// ListDirectories returns the names of directories directly under
	// basePath.
	ListDirectories(ctx context.Context, basePath string) ([]string, error)

	// Kind returns the backend kind this adapter implements.
	Kind() BackendKind

	// Name returns an identifier for logging.
	Name() string
}
