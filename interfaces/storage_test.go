package interfaces

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendKind_ParseAndString(t *testing.T) {
	tests := []struct {
		tag  string
		want BackendKind
	}{
		{"local", BackendLocal},
		{"objectstore", BackendObjectStore},
		{"s3", BackendObjectStore}, // legacy alias
		{"clouddrive", BackendCloudDrive},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			kind, err := ParseBackendKind(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestParseBackendKind_RejectsUnknownTags(t *testing.T) {
	_, err := ParseBackendKind("ftp")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBackendKind_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(BackendCloudDrive)
	require.NoError(t, err)
	assert.Equal(t, `"clouddrive"`, string(data))

	var kind BackendKind
	require.NoError(t, json.Unmarshal([]byte(`"objectstore"`), &kind))
	assert.Equal(t, BackendObjectStore, kind)

	err = json.Unmarshal([]byte(`"tape"`), &kind)
	assert.Error(t, err, "unknown tags fail at the decode boundary")
}

func TestContentCategory_Parse(t *testing.T) {
	for _, category := range Categories {
		parsed, err := ParseContentCategory(category.String())
		require.NoError(t, err)
		assert.Equal(t, category, parsed)
	}

	_, err := ParseContentCategory("audio")
	assert.Error(t, err)
}

func TestTransferError_WrapsCause(t *testing.T) {
	terr := &TransferError{
		Op:       "upload",
		Path:     "/tenants/acme/video/clip.mp4",
		Offset:   10485760,
		Attempts: 4,
		Err:      ErrQuotaExceeded,
	}

	assert.ErrorIs(t, terr, ErrQuotaExceeded)
	assert.Contains(t, terr.Error(), "offset 10485760")
	assert.Contains(t, terr.Error(), "4 attempts")

	var target *TransferError
	assert.True(t, errors.As(error(terr), &target))
}
