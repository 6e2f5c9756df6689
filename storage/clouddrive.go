package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// CloudDriveOptions configure a cloud-drive adapter instance.
type CloudDriveOptions struct {
	// BaseURL is the root of the drive's HTTP API.
	BaseURL string
	// OAuthToken authenticates every request. Construction fails fast
	// when it is empty; the manager decides whether to fall back.
	OAuthToken string
	// BasePath is the remote folder all logical paths resolve under.
	BasePath string

	// ChunkSize is the fixed transfer chunk size in bytes.
	ChunkSize int64
	// UploadConcurrency bounds chunks in flight per transfer.
	UploadConcurrency int
	// RequestTimeout bounds each HTTP request, not whole transfers.
	RequestTimeout time.Duration
	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int

	// PoolSize and PoolMaxSize bound the pooled HTTP session.
	PoolSize    int
	PoolMaxSize int

	// CacheTTL and CacheCapacity tune the directory-existence cache.
	CacheTTL      time.Duration
	CacheCapacity int
}

// CloudDriveAdapter stores assets through an OAuth-authenticated HTTP API
// with no native large-object support. Uploads and downloads are chunked
// with bounded concurrency (see transfer.go); every request authenticates
// with a bearer token over one pooled HTTP session per adapter instance.
//
// The remote API surface:
//
//	GET    /v1/files?path=P             file metadata (size)
//	GET    /v1/files/content?path=P     ranged content fetch
//	DELETE /v1/files?path=P             file removal
//	GET    /v1/folders?path=P           folder metadata
//	POST   /v1/folders                  folder creation (409 when present)
//	GET    /v1/folders/children?path=P  child folder listing
//	POST   /v1/uploads                  chunked upload session init
//	PUT    /v1/uploads/{id}             one chunk, addressed by Content-Range
//	POST   /v1/uploads/{id}/commit      transfer completion
type CloudDriveAdapter struct {
	client      *http.Client
	baseURL     string
	token       string
	basePath    string
	chunkSize   int64
	concurrency int
	maxRetries  int
	dirs        *DirCache
	log         *slog.Logger
}

// NewCloudDriveAdapter creates a cloud-drive adapter. A missing token or
// base URL is a configuration error surfaced immediately.
func NewCloudDriveAdapter(opts CloudDriveOptions, log *slog.Logger) (*CloudDriveAdapter, error) {
	if opts.OAuthToken == "" {
		return nil, fmt.Errorf("%w: cloud drive OAuth token not set", interfaces.ErrConfiguration)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: cloud drive base URL not set", interfaces.ErrConfiguration)
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10 * 1024 * 1024
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	if opts.PoolMaxSize < opts.PoolSize {
		opts.PoolMaxSize = 2 * opts.PoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        opts.PoolMaxSize,
		MaxIdleConnsPerHost: opts.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}

	return &CloudDriveAdapter{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.RequestTimeout,
		},
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		token:       opts.OAuthToken,
		basePath:    strings.Trim(opts.BasePath, "/"),
		chunkSize:   opts.ChunkSize,
		concurrency: opts.UploadConcurrency,
		maxRetries:  opts.MaxRetries,
		dirs:        NewDirCache(opts.CacheCapacity, opts.CacheTTL),
		log:         log,
	}, nil
}

// Save uploads content in chunks, provisioning parent folders first.
func (a *CloudDriveAdapter) Save(ctx context.Context, data []byte, logicalPath string) (string, error) {
	start := time.Now()
	remote := a.remote(logicalPath)

	if parent := path.Dir(remote); parent != "." && parent != "/" {
		if err := a.ensureFolder(ctx, parent); err != nil {
			return "", err
		}
	}

	if err := a.upload(ctx, remote, data); err != nil {
		return "", err
	}

	a.log.Debug("Stored content on cloud drive",
		slog.String("path", remote),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return a.PublicURL(logicalPath), nil
}

// Get downloads content range-by-range and returns it as one buffer.
func (a *CloudDriveAdapter) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	return a.download(ctx, a.remote(logicalPath))
}

// Delete removes a file. An absent path returns false without error.
func (a *CloudDriveAdapter) Delete(ctx context.Context, logicalPath string) (bool, error) {
	remote := a.remote(logicalPath)

	_, err := a.retry(ctx, func() error {
		return a.do(ctx, http.MethodDelete, "/v1/files", url.Values{"path": {remote}}, nil, nil)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Exists checks file metadata with a single call.
func (a *CloudDriveAdapter) Exists(ctx context.Context, logicalPath string) (bool, error) {
	remote := a.remote(logicalPath)

	_, err := a.retry(ctx, func() error {
		return a.do(ctx, http.MethodGet, "/v1/files", url.Values{"path": {remote}}, nil, nil)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PublicURL derives the content URL without a network call.
func (a *CloudDriveAdapter) PublicURL(logicalPath string) string {
	q := url.Values{"path": {a.remote(logicalPath)}}
	return a.baseURL + "/v1/files/content?" + q.Encode()
}

// CreateDirectory provisions the nested folder path remotely. Idempotent:
// folders already present are not an error. Created folders are recorded
// in the directory cache so the next existence check stays local.
func (a *CloudDriveAdapter) CreateDirectory(ctx context.Context, dirPath string) (bool, error) {
	if err := a.ensureFolder(ctx, a.remote(dirPath)); err != nil {
		return false, err
	}
	return true, nil
}

// DirectoryExists consults the directory cache before asking the remote.
// A cache miss performs the remote check and populates the cache.
func (a *CloudDriveAdapter) DirectoryExists(ctx context.Context, dirPath string) (bool, error) {
	remote := a.remote(dirPath)

	if exists, ok := a.dirs.Lookup(remote); ok {
		return exists, nil
	}

	exists, err := a.folderExistsRemote(ctx, remote)
	if err != nil {
		return false, err
	}
	a.dirs.Record(remote, exists)
	return exists, nil
}

// ListDirectories returns child folder names under basePath.
func (a *CloudDriveAdapter) ListDirectories(ctx context.Context, basePath string) ([]string, error) {
	remote := a.remote(basePath)

	var out struct {
		Folders []string `json:"folders"`
	}
	_, err := a.retry(ctx, func() error {
		return a.do(ctx, http.MethodGet, "/v1/folders/children", url.Values{"path": {remote}}, nil, &out)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out.Folders, nil
}

// Kind returns BackendCloudDrive.
func (a *CloudDriveAdapter) Kind() interfaces.BackendKind {
	return interfaces.BackendCloudDrive
}

// Name returns a unique identifier for logging.
func (a *CloudDriveAdapter) Name() string {
	return fmt.Sprintf("clouddrive-%s", a.basePath)
}

// CacheStats exposes directory-cache counters for the admin surface.
func (a *CloudDriveAdapter) CacheStats() DirCacheStats {
	return a.dirs.Stats()
}

// ensureFolder creates every missing segment of a nested remote folder
// path, consulting the cache per level to skip provisioned subtrees.
func (a *CloudDriveAdapter) ensureFolder(ctx context.Context, remote string) error {
	remote = normalizeRemotePath(remote)
	if remote == "" || remote == "/" {
		return nil
	}

	segments := strings.Split(strings.TrimPrefix(remote, "/"), "/")
	current := ""
	for _, seg := range segments {
		current = current + "/" + seg

		if exists, ok := a.dirs.Lookup(current); ok && exists {
			continue
		}

		body, _ := json.Marshal(map[string]string{"path": current})
		_, err := a.retry(ctx, func() error {
			return a.do(ctx, http.MethodPost, "/v1/folders", nil, bytes.NewReader(body), nil)
		})
		if err != nil && !errors.Is(err, errFolderConflict) {
			return err
		}
		// Record proactively to avoid an immediate redundant check.
		a.dirs.Record(current, true)
	}
	return nil
}

func (a *CloudDriveAdapter) folderExistsRemote(ctx context.Context, remote string) (bool, error) {
	_, err := a.retry(ctx, func() error {
		return a.do(ctx, http.MethodGet, "/v1/folders", url.Values{"path": {remote}}, nil, nil)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// fileSize fetches file metadata, returning interfaces.ErrNotFound for
// absent paths.
func (a *CloudDriveAdapter) fileSize(ctx context.Context, remote string) (int64, error) {
	var meta struct {
		Size int64 `json:"size"`
	}
	_, err := a.retry(ctx, func() error {
		return a.do(ctx, http.MethodGet, "/v1/files", url.Values{"path": {remote}}, nil, &meta)
	})
	if err != nil {
		return 0, err
	}
	return meta.Size, nil
}

// errFolderConflict marks a folder-create that raced an existing folder.
// It satisfies CreateDirectory's idempotence and is never surfaced.
var errFolderConflict = errors.New("folder already exists")

// do issues one authenticated request and decodes a JSON response into out
// when provided. Non-2xx statuses are mapped onto the error taxonomy.
func (a *CloudDriveAdapter) do(ctx context.Context, method, apiPath string, query url.Values, body io.Reader, out any) error {
	u := a.baseURL + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build cloud drive request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud drive request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode cloud drive response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// classifyStatus maps HTTP statuses onto the shared error taxonomy.
// Transient statuses return a plain error so the retry policy picks them
// up; everything in the taxonomy is permanent.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", interfaces.ErrAuthentication, status)
	case status == http.StatusNotFound:
		return interfaces.ErrNotFound
	case status == http.StatusConflict:
		return errFolderConflict
	case status == http.StatusInsufficientStorage:
		return fmt.Errorf("%w: status %d", interfaces.ErrQuotaExceeded, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("transient cloud drive failure: status %d", status)
	default:
		return backoff.Permanent(fmt.Errorf("cloud drive rejected request: status %d", status))
	}
}

// retry runs fn with exponential backoff for transient failures, up to the
// configured attempt budget. Taxonomy errors surface immediately. The
// attempt count is returned for transfer error reporting.
func (a *CloudDriveAdapter) retry(ctx context.Context, fn func() error) (int, error) {
	attempts := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newTransferBackOff(), uint64(a.maxRetries)), ctx)

	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if isPermanentStorageErr(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	return attempts, err
}

func newTransferBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	return b
}

func isPermanentStorageErr(err error) bool {
	return errors.Is(err, interfaces.ErrNotFound) ||
		errors.Is(err, interfaces.ErrAuthentication) ||
		errors.Is(err, interfaces.ErrQuotaExceeded) ||
		errors.Is(err, interfaces.ErrConfiguration) ||
		errors.Is(err, errFolderConflict)
}

// remote resolves a logical path under the adapter's base path.
func (a *CloudDriveAdapter) remote(logicalPath string) string {
	p := strings.TrimPrefix(logicalPath, "/")
	if a.basePath != "" {
		p = a.basePath + "/" + p
	}
	return "/" + p
}
