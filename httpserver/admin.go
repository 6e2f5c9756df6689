package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelforge/cms-storage-backend/config"
	"github.com/pixelforge/cms-storage-backend/interfaces"
	"github.com/pixelforge/cms-storage-backend/storage"
)

// AdminHandler exposes the administrative surface: reading and mutating
// the storage configuration at runtime, scoped adapter-cache
// invalidation, and tenant folder provisioning/verification.
//
// Every configuration mutation persists write-through and invalidates the
// affected adapter-cache scope before responding, so the next operation
// observes the new configuration.
type AdminHandler struct {
	cfg     *config.Store
	manager *storage.Manager
	log     *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(cfg *config.Store, manager *storage.Manager, log *slog.Logger) *AdminHandler {
	return &AdminHandler{cfg: cfg, manager: manager, log: log}
}

// Routes mounts the admin endpoints on a router.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/config", h.handleGetConfig)
	r.Put("/config/categories/{category}", h.handleSetCategory)
	r.Put("/config/clouddrive", h.handleSetCloudDrive)
	r.Put("/config/objectstore", h.handleSetObjectStore)
	r.Put("/config/transfer", h.handleSetTransfer)
	r.Put("/config/backup", h.handleSetBackup)
	r.Post("/invalidate", h.handleInvalidate)
	r.Post("/tenants/{tenant}/provision", h.handleProvision)
	r.Post("/tenants/{tenant}/verify", h.handleVerify)
}

// handleGetConfig returns the current record with secrets redacted.
func (h *AdminHandler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	rec := h.cfg.Snapshot()
	if rec.CloudDrive.OAuthToken != "" {
		rec.CloudDrive.OAuthToken = "***"
	}
	if rec.ObjectStore.SecretKey != "" {
		rec.ObjectStore.SecretKey = "***"
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *AdminHandler) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := interfaces.ParseContentCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var settings config.CategorySettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid category settings: "+err.Error())
		return
	}

	if err := h.cfg.SetCategory(category, settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.manager.InvalidateCategory(category)

	h.log.Info("Category backend updated",
		slog.String("category", category.String()),
		slog.String("backend", settings.Backend.String()))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AdminHandler) handleSetCloudDrive(w http.ResponseWriter, r *http.Request) {
	var settings config.CloudDriveSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid cloud drive settings: "+err.Error())
		return
	}

	if err := h.cfg.SetCloudDrive(settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Credentials feed every cloud-drive adapter, tenant ones included.
	h.manager.InvalidateAll()

	h.log.Info("Cloud drive settings updated", slog.Bool("enabled", settings.Enabled))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AdminHandler) handleSetObjectStore(w http.ResponseWriter, r *http.Request) {
	var settings config.ObjectStoreSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid object store settings: "+err.Error())
		return
	}

	if err := h.cfg.SetObjectStore(settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.manager.InvalidateAll()

	h.log.Info("Object store settings updated",
		slog.Bool("enabled", settings.Enabled),
		slog.String("bucket", settings.Bucket))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AdminHandler) handleSetTransfer(w http.ResponseWriter, r *http.Request) {
	var settings config.TransferSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transfer settings: "+err.Error())
		return
	}

	if err := h.cfg.SetTransfer(settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.manager.InvalidateAll()

	h.log.Info("Transfer tuning updated")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleSetBackup updates the backup pass-through settings. They are
// consumed by the external backup collaborator, so no adapters are
// invalidated.
func (h *AdminHandler) handleSetBackup(w http.ResponseWriter, r *http.Request) {
	var settings config.BackupSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid backup settings: "+err.Error())
		return
	}

	if err := h.cfg.SetBackup(settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// invalidateRequest scopes an adapter-cache invalidation. Both fields are
// optional; an empty body evicts everything.
type invalidateRequest struct {
	Tenant   string `json:"tenant,omitempty"`
	Category string `json:"category,omitempty"`
}

func (h *AdminHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid invalidation request: "+err.Error())
			return
		}
	}

	var category interfaces.ContentCategory
	if req.Category != "" {
		var err error
		category, err = interfaces.ParseContentCategory(req.Category)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	switch {
	case req.Tenant != "" && req.Category != "":
		h.manager.Invalidate(interfaces.TenantID(req.Tenant), category)
	case req.Tenant != "":
		h.manager.InvalidateTenant(interfaces.TenantID(req.Tenant))
	case req.Category != "":
		h.manager.InvalidateCategory(category)
	default:
		h.manager.InvalidateAll()
	}

	h.log.Info("Adapter cache invalidated",
		slog.String("tenant", req.Tenant),
		slog.String("category", req.Category))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// provisionRequest names the categories to act on; empty means all.
type provisionRequest struct {
	Categories []string `json:"categories,omitempty"`
}

func (h *AdminHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	h.runTenantReport(w, r, h.manager.Provision)
}

func (h *AdminHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.runTenantReport(w, r, h.manager.Verify)
}

func (h *AdminHandler) runTenantReport(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, tenant interfaces.TenantID, categories []interfaces.ContentCategory) storage.Report) {
	tenant := interfaces.TenantID(chi.URLParam(r, "tenant"))
	if tenant == "" {
		h.writeError(w, http.StatusBadRequest, "tenant id required")
		return
	}

	var req provisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}

	categories := interfaces.Categories
	if len(req.Categories) > 0 {
		categories = categories[:0:0]
		for _, name := range req.Categories {
			category, err := interfaces.ParseContentCategory(name)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			categories = append(categories, category)
		}
	}

	report := run(r.Context(), tenant, categories)
	status := http.StatusOK
	if !report.Succeeded() {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, report)
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *AdminHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
