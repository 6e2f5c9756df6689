package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// LocalAdapter implements the storage contract on the local filesystem.
// It is the universal fallback of the resolution policy: construction only
// fails when the root directory cannot be created, never from configuration.
type LocalAdapter struct {
	root    string
	urlBase string
	log     *slog.Logger
}

// NewLocalAdapter creates a local-disk adapter rooted at root. Public URLs
// are derived by joining urlBase (a locally served path such as "/assets")
// with the logical path.
func NewLocalAdapter(root, urlBase string, log *slog.Logger) (*LocalAdapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	if urlBase == "" {
		urlBase = "/assets"
	}

	return &LocalAdapter{
		root:    root,
		urlBase: strings.TrimSuffix(urlBase, "/"),
		log:     log,
	}, nil
}

// Save writes content under the root, creating parent directories.
func (a *LocalAdapter) Save(ctx context.Context, data []byte, logicalPath string) (string, error) {
	full, err := a.resolve(logicalPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	a.log.Debug("Stored content on local disk",
		slog.String("path", full),
		slog.Int("size", len(data)))

	return a.PublicURL(logicalPath), nil
}

// Get reads content by logical path. Returns interfaces.ErrNotFound when
// the file is absent.
func (a *LocalAdapter) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	full, err := a.resolve(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes a file. Deleting an absent path returns false, not an error.
func (a *LocalAdapter) Delete(ctx context.Context, logicalPath string) (bool, error) {
	full, err := a.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	return true, nil
}

// Exists reports whether a file is present.
func (a *LocalAdapter) Exists(ctx context.Context, logicalPath string) (bool, error) {
	full, err := a.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// PublicURL joins the configured URL base with the logical path. No I/O.
func (a *LocalAdapter) PublicURL(logicalPath string) string {
	return a.urlBase + "/" + strings.TrimPrefix(logicalPath, "/")
}

// CreateDirectory provisions a directory hierarchy. Idempotent.
func (a *LocalAdapter) CreateDirectory(ctx context.Context, dirPath string) (bool, error) {
	full, err := a.resolve(dirPath)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	return true, nil
}

// DirectoryExists reports whether a directory is present.
func (a *LocalAdapter) DirectoryExists(ctx context.Context, dirPath string) (bool, error) {
	full, err := a.resolve(dirPath)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat directory: %w", err)
	}
	return info.IsDir(), nil
}

// ListDirectories returns the directory names directly under basePath.
func (a *LocalAdapter) ListDirectories(ctx context.Context, basePath string) ([]string, error) {
	full, err := a.resolve(basePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

// Kind returns BackendLocal.
func (a *LocalAdapter) Kind() interfaces.BackendKind {
	return interfaces.BackendLocal
}

// Name returns a unique identifier for logging.
func (a *LocalAdapter) Name() string {
	return fmt.Sprintf("local-%s", filepath.Base(a.root))
}

// resolve maps a logical path under the root, rejecting traversal outside it.
func (a *LocalAdapter) resolve(logicalPath string) (string, error) {
	full := filepath.Join(a.root, filepath.FromSlash(logicalPath))
	if full != a.root && !strings.HasPrefix(full, a.root+string(filepath.Separator)) {
		return "", fmt.Errorf("logical path escapes storage root: %s", logicalPath)
	}
	return full, nil
}
