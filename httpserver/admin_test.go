package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/cms-storage-backend/config"
	"github.com/pixelforge/cms-storage-backend/interfaces"
	"github.com/pixelforge/cms-storage-backend/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdmin(t *testing.T) (*config.Store, http.Handler) {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "storage.json"), testLogger())
	require.NoError(t, err)

	manager, err := storage.NewManager(storage.ManagerOptions{
		Config:       cfg,
		LocalRoot:    t.TempDir(),
		LocalURLBase: "/assets",
	}, testLogger())
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/api/admin", NewAdminHandler(cfg, manager, testLogger()).Routes)
	return cfg, router
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_GetConfigRedactsSecrets(t *testing.T) {
	cfg, handler := newTestAdmin(t)

	require.NoError(t, cfg.SetCloudDrive(config.CloudDriveSettings{Enabled: true, OAuthToken: "super-secret"}))
	require.NoError(t, cfg.SetObjectStore(config.ObjectStoreSettings{SecretKey: "hunter2", AccessKey: "ak"}))

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got config.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "***", got.CloudDrive.OAuthToken)
	assert.Equal(t, "***", got.ObjectStore.SecretKey)
	assert.Equal(t, "ak", got.ObjectStore.AccessKey, "only secrets are redacted")

	// The secrets are still intact in the store itself.
	assert.Equal(t, "super-secret", cfg.CloudDrive().OAuthToken)
}

func TestAdmin_SetCategoryPersists(t *testing.T) {
	cfg, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/config/categories/video", config.CategorySettings{
		Backend:    interfaces.BackendCloudDrive,
		CloudDrive: config.CategoryCloudDrive{Enabled: true, BasePath: "cms/video"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, interfaces.BackendCloudDrive, cfg.BackendFor(interfaces.CategoryVideo))
	assert.Equal(t, "cms/video", cfg.CategoryFor(interfaces.CategoryVideo).CloudDrive.BasePath)
}

func TestAdmin_SetCategoryRejectsBadInput(t *testing.T) {
	_, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/config/categories/audio", config.CategorySettings{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown category")

	req := httptest.NewRequest(http.MethodPut, "/api/admin/config/categories/video",
		bytes.NewReader([]byte(`{"backend":"floppy"}`)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown backend kind")
}

func TestAdmin_SetCloudDrive(t *testing.T) {
	cfg, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/config/clouddrive", config.CloudDriveSettings{
		Enabled:    true,
		OAuthToken: "fresh-token",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh-token", cfg.CloudDrive().OAuthToken)
}

func TestAdmin_SetTransferBackfillsDefaults(t *testing.T) {
	cfg, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/config/transfer", config.TransferSettings{
		ChunkSizeMB: 4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	transfer := cfg.Transfer()
	assert.Equal(t, 4, transfer.ChunkSizeMB)
	assert.Equal(t, config.DefaultUploadConcurrency, transfer.UploadConcurrency)
}

func TestAdmin_SetBackup(t *testing.T) {
	cfg, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/config/backup", config.BackupSettings{
		AutoSplit: true,
		MaxSizeMB: 2048,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2048, cfg.Backup().MaxSizeMB)
}

func TestAdmin_InvalidateScopes(t *testing.T) {
	_, handler := newTestAdmin(t)

	// Empty body evicts everything.
	rec := doJSON(t, handler, http.MethodPost, "/api/admin/invalidate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/invalidate", map[string]string{
		"tenant": "acme",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/invalidate", map[string]string{
		"tenant":   "acme",
		"category": "image",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/invalidate", map[string]string{
		"category": "audio",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown category is rejected")
}

func TestAdmin_ProvisionAndVerifyTenant(t *testing.T) {
	_, handler := newTestAdmin(t)

	// Verification before provisioning reports the missing folders.
	rec := doJSON(t, handler, http.MethodPost, "/api/admin/tenants/acme/verify", nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/tenants/acme/provision", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report storage.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, interfaces.TenantID("acme"), report.Tenant)
	assert.Len(t, report.Results, len(interfaces.Categories))
	assert.True(t, report.Succeeded())

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/tenants/acme/verify", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_ProvisionSelectedCategories(t *testing.T) {
	_, handler := newTestAdmin(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/tenants/acme/provision",
		map[string][]string{"categories": {"image", "preview"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var report storage.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, interfaces.CategoryImage, report.Results[0].Category)
	assert.Equal(t, interfaces.CategoryPreview, report.Results[1].Category)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/tenants/acme/provision",
		map[string][]string{"categories": {"audio"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
