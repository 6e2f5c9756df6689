package storage

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

func newTestObjectStore(t *testing.T, opts ObjectStoreOptions) *ObjectStoreAdapter {
	t.Helper()
	if opts.Bucket == "" {
		opts.Bucket = "cms-assets"
	}
	if opts.AccessKey == "" {
		opts.AccessKey = "ak"
	}
	if opts.SecretKey == "" {
		opts.SecretKey = "sk"
	}
	adapter, err := NewObjectStoreAdapter(opts, testLogger())
	require.NoError(t, err)
	return adapter
}

func TestObjectStoreAdapter_ConstructionValidation(t *testing.T) {
	_, err := NewObjectStoreAdapter(ObjectStoreOptions{
		AccessKey: "ak", SecretKey: "sk",
	}, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrConfiguration, "bucket is required")

	_, err = NewObjectStoreAdapter(ObjectStoreOptions{
		Bucket: "cms-assets",
	}, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrConfiguration, "credentials are required")
}

func TestObjectStoreAdapter_KeyDerivation(t *testing.T) {
	adapter := newTestObjectStore(t, ObjectStoreOptions{})
	assert.Equal(t, "a/b.png", adapter.key("/a/b.png"))
	assert.Equal(t, "a/b.png", adapter.key("a/b.png"))
	assert.Equal(t, "a/b/", adapter.dirKey("a/b"))
	assert.Equal(t, "a/b/", adapter.dirKey("a/b/"))

	prefixed := newTestObjectStore(t, ObjectStoreOptions{Prefix: "/tenant-root/"})
	assert.Equal(t, "tenant-root/a/b.png", prefixed.key("a/b.png"))
	assert.Equal(t, "tenant-root/a/b/", prefixed.dirKey("a/b"))
}

func TestObjectStoreAdapter_PublicURL(t *testing.T) {
	adapter := newTestObjectStore(t, ObjectStoreOptions{
		Endpoint: "https://minio.internal:9000/",
	})
	assert.Equal(t,
		"https://minio.internal:9000/cms-assets/img/logo.png",
		adapter.PublicURL("img/logo.png"))

	fronted := newTestObjectStore(t, ObjectStoreOptions{
		Endpoint:   "https://minio.internal:9000",
		PublicBase: "https://cdn.example.com/",
	})
	assert.Equal(t,
		"https://cdn.example.com/img/logo.png",
		fronted.PublicURL("img/logo.png"),
		"a public base replaces endpoint+bucket in derived URLs")
}

func TestObjectStoreAdapter_MapError(t *testing.T) {
	adapter := newTestObjectStore(t, ObjectStoreOptions{})

	tests := []struct {
		code string
		want error
	}{
		{"NoSuchKey", interfaces.ErrNotFound},
		{"NotFound", interfaces.ErrNotFound},
		{"AccessDenied", interfaces.ErrAuthentication},
		{"InvalidAccessKeyId", interfaces.ErrAuthentication},
		{"SlowDown", interfaces.ErrQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := adapter.mapError(awserr.New(tt.code, "provider says no", nil))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Unrecognized provider errors pass through unchanged.
	raw := awserr.New("InternalError", "boom", nil)
	assert.Equal(t, error(raw), adapter.mapError(raw))
}

func TestObjectStoreAdapter_Kind(t *testing.T) {
	adapter := newTestObjectStore(t, ObjectStoreOptions{})
	assert.Equal(t, interfaces.BackendObjectStore, adapter.Kind())
	assert.Equal(t, "objectstore-cms-assets", adapter.Name())
}
