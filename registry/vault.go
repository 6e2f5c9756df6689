package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// VaultConnectionRegistry resolves opaque connection identifiers to
// concrete storage credentials stored in HashiCorp Vault (KV v2). Each
// connection lives at <mountPath>/data/<dataPath>/<connectionID> with the
// fields:
//
//	active       "true" | "false"
//	oauth_token  cloud-drive bearer token
//	base_path    cloud-drive root folder
//	endpoint     object-store endpoint
//	access_key   object-store access key
//	secret_key   object-store secret key
//	bucket       object-store bucket
//
// The registry is read-only. Lookup failures surface as errors so the
// storage manager can fail closed onto local storage.
type VaultConnectionRegistry struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultConnectionRegistry creates a registry against the Vault server
// at address, authenticated by token.
func NewVaultConnectionRegistry(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultConnectionRegistry, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address
	cfg.Timeout = 15 * time.Second

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultConnectionRegistry{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

// GetConnection reads and decodes one connection secret. A missing secret
// is ErrNotFound; anything else is a lookup error the manager treats as
// fail-closed.
func (r *VaultConnectionRegistry) GetConnection(ctx context.Context, id string) (interfaces.Connection, error) {
	start := time.Now()
	secretPath := fmt.Sprintf("%s/data/%s/%s", r.mountPath, r.dataPath, id)

	secret, err := r.client.Logical().ReadWithContext(ctx, secretPath)
	if err != nil {
		r.log.Error("Vault connection lookup failed",
			slog.String("connection_id", id),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return interfaces.Connection{}, fmt.Errorf("failed to read connection from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return interfaces.Connection{}, interfaces.ErrNotFound
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return interfaces.Connection{}, fmt.Errorf("unexpected Vault secret shape at %s", secretPath)
	}

	conn := interfaces.Connection{
		ID:     id,
		Active: fieldBool(data, "active"),
		Credentials: interfaces.Credentials{
			OAuthToken: fieldString(data, "oauth_token"),
			BasePath:   fieldString(data, "base_path"),
			Endpoint:   fieldString(data, "endpoint"),
			AccessKey:  fieldString(data, "access_key"),
			SecretKey:  fieldString(data, "secret_key"),
			Bucket:     fieldString(data, "bucket"),
		},
	}

	r.log.Debug("Resolved connection from Vault",
		slog.String("connection_id", id),
		slog.Bool("active", conn.Active),
		slog.Duration("duration", time.Since(start)))
	return conn, nil
}

func fieldString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func fieldBool(data map[string]any, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

var _ interfaces.ConnectionRegistry = (*VaultConnectionRegistry)(nil)
