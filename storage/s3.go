package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// ObjectStoreOptions address an S3-compatible object store.
type ObjectStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
	// PublicBase, when set, replaces endpoint+bucket in derived URLs
	// (typically a CDN in front of the bucket).
	PublicBase string
	// Prefix namespaces all keys, used for tenant root-folder isolation.
	Prefix string
}

// ObjectStoreAdapter is a thin wrapper over an S3-compatible protocol
// client. Object stores have no native directories, so directory
// operations are emulated with zero-byte marker objects and key prefixes.
type ObjectStoreAdapter struct {
	client     *s3.S3
	bucket     string
	prefix     string
	publicBase string
	log        *slog.Logger
}

// NewObjectStoreAdapter creates an object-store adapter. Missing bucket or
// credentials are a configuration error: the manager decides whether to
// fall back, not this adapter.
func NewObjectStoreAdapter(opts ObjectStoreOptions, log *slog.Logger) (*ObjectStoreAdapter, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: object store bucket not set", interfaces.ErrConfiguration)
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("%w: object store credentials not set", interfaces.ErrConfiguration)
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	cfg := aws.Config{
		Region:      aws.String(opts.Region),
		Credentials: credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""),
		// Path-style addressing works across MinIO and other
		// S3-compatible stores that lack virtual-host buckets.
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.DisableSSL = aws.Bool(!opts.Secure)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create object store session: %v", interfaces.ErrConfiguration, err)
	}

	publicBase := opts.PublicBase
	if publicBase == "" {
		publicBase = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
	}

	return &ObjectStoreAdapter{
		client:     s3.New(sess),
		bucket:     opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		publicBase: strings.TrimSuffix(publicBase, "/"),
		log:        log,
	}, nil
}

// Save uploads content and returns its derived public URL.
func (a *ObjectStoreAdapter) Save(ctx context.Context, data []byte, logicalPath string) (string, error) {
	start := time.Now()
	key := a.key(logicalPath)

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", a.mapError(err))
	}

	a.log.Debug("Stored content in object store",
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return a.PublicURL(logicalPath), nil
}

// Get fetches an object. Returns interfaces.ErrNotFound when absent.
func (a *ObjectStoreAdapter) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	key := a.key(logicalPath)

	result, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, a.mapError(err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Delete removes an object, reporting whether it existed. DeleteObject is
// itself silent about absent keys, so existence is checked first to keep
// the contract's idempotent-delete semantics.
func (a *ObjectStoreAdapter) Delete(ctx context.Context, logicalPath string) (bool, error) {
	existed, err := a.Exists(ctx, logicalPath)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	_, err = a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(logicalPath)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", a.mapError(err))
	}
	return true, nil
}

// Exists uses a HEAD-style metadata call rather than a full fetch.
func (a *ObjectStoreAdapter) Exists(ctx context.Context, logicalPath string) (bool, error) {
	return a.head(ctx, a.key(logicalPath))
}

// PublicURL derives the access URL from the configured public base.
func (a *ObjectStoreAdapter) PublicURL(logicalPath string) string {
	return a.publicBase + "/" + a.key(logicalPath)
}

// CreateDirectory emulates a directory with a zero-byte marker object.
func (a *ObjectStoreAdapter) CreateDirectory(ctx context.Context, dirPath string) (bool, error) {
	key := a.dirKey(dirPath)

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return false, fmt.Errorf("failed to create directory marker: %w", a.mapError(err))
	}

	a.log.Debug("Created directory marker",
		slog.String("bucket", a.bucket),
		slog.String("key", key))
	return true, nil
}

// DirectoryExists checks the zero-byte marker with a metadata call.
func (a *ObjectStoreAdapter) DirectoryExists(ctx context.Context, dirPath string) (bool, error) {
	return a.head(ctx, a.dirKey(dirPath))
}

// ListDirectories lists common prefixes one level under basePath.
func (a *ObjectStoreAdapter) ListDirectories(ctx context.Context, basePath string) ([]string, error) {
	prefix := a.dirKey(basePath)
	if prefix == "/" {
		prefix = ""
	}

	var dirs []string
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	err := a.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, cp := range page.CommonPrefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
				if name != "" {
					dirs = append(dirs, name)
				}
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list directories: %w", a.mapError(err))
	}
	return dirs, nil
}

// Kind returns BackendObjectStore.
func (a *ObjectStoreAdapter) Kind() interfaces.BackendKind {
	return interfaces.BackendObjectStore
}

// Name returns a unique identifier for logging.
func (a *ObjectStoreAdapter) Name() string {
	return fmt.Sprintf("objectstore-%s", a.bucket)
}

func (a *ObjectStoreAdapter) head(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", a.mapError(err))
	}
	return true, nil
}

func (a *ObjectStoreAdapter) key(logicalPath string) string {
	key := strings.TrimPrefix(logicalPath, "/")
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

func (a *ObjectStoreAdapter) dirKey(dirPath string) string {
	return strings.TrimSuffix(a.key(dirPath), "/") + "/"
}

// mapError translates provider errors into the shared taxonomy.
func (a *ObjectStoreAdapter) mapError(err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return interfaces.ErrNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", interfaces.ErrAuthentication, aerr.Code())
		case "QuotaExceeded", "SlowDown":
			return fmt.Errorf("%w: %s", interfaces.ErrQuotaExceeded, aerr.Code())
		}
	}
	return err
}

func isS3NotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound", "404":
			return true
		}
	}
	return false
}
