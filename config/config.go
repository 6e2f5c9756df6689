// Package config manages the persisted storage configuration record.
//
// The record is stored as a JSON file and is always loadable: when the file
// is missing or unparsable a default record is synthesized and persisted in
// its place. Every mutation is written through immediately so configuration
// survives a restart without an explicit save step. Environment variables
// override the persisted record once, at load time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// Defaults applied when synthesizing a record and when individual tuning
// fields are zero after load.
const (
	DefaultRequestTimeoutSeconds = 60
	DefaultChunkSizeMB           = 10
	DefaultUploadConcurrency     = 3
	DefaultCacheTTLSeconds       = 300
	DefaultCacheCapacity         = 1024
	DefaultPoolSize              = 10
	DefaultPoolMaxSize           = 20
)

// CategorySettings routes one content category to a backend.
type CategorySettings struct {
	Backend    interfaces.BackendKind `json:"backend"`
	CloudDrive CategoryCloudDrive     `json:"cloudDrive"`
}

// CategoryCloudDrive carries the per-category cloud-drive placement.
type CategoryCloudDrive struct {
	Enabled  bool   `json:"enabled"`
	BasePath string `json:"basePath"`
}

// CloudDriveSettings are the global cloud-drive connection parameters.
type CloudDriveSettings struct {
	Enabled    bool   `json:"enabled"`
	OAuthToken string `json:"oauthToken"`
}

// ObjectStoreSettings address an S3-compatible object store.
type ObjectStoreSettings struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Secure    bool   `json:"secure"`
	// PublicBase, when set, replaces endpoint+bucket in derived URLs
	// (CDN fronting).
	PublicBase string `json:"publicBase,omitempty"`
}

// BackupSettings are consumed by the external backup collaborator. This
// component only persists and serves them.
type BackupSettings struct {
	AutoSplit   bool `json:"autoSplit"`
	MaxSizeMB   int  `json:"maxSizeMB"`
	ChunkSizeMB int  `json:"chunkSizeMB"`
	Compression bool `json:"compression"`
}

// TransferSettings tune the cloud-drive transfer protocol and caches.
type TransferSettings struct {
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
	ChunkSizeMB           int `json:"chunkSizeMB"`
	UploadConcurrency     int `json:"uploadConcurrency"`
	CacheTTLSeconds       int `json:"cacheTTLSeconds"`
	CacheCapacity         int `json:"cacheCapacity"`
	PoolSize              int `json:"poolSize"`
	PoolMaxSize           int `json:"poolMaxSize"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (t TransferSettings) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSeconds) * time.Second
}

// ChunkSize returns the chunk size in bytes.
func (t TransferSettings) ChunkSize() int64 {
	return int64(t.ChunkSizeMB) * 1024 * 1024
}

// CacheTTL returns the directory-cache TTL as a duration.
func (t TransferSettings) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

// Record is the versioned persisted configuration. Version increments on
// every mutation so operators can correlate adapter-cache invalidations
// with configuration changes.
type Record struct {
	Version     int                         `json:"version"`
	Categories  map[string]CategorySettings `json:"categories"`
	CloudDrive  CloudDriveSettings          `json:"cloudDrive"`
	ObjectStore ObjectStoreSettings         `json:"objectStore"`
	Backup      BackupSettings              `json:"backupSettings"`
	Transfer    TransferSettings            `json:"transfer"`
}

// Store owns the persisted record. All reads return copies; all mutations
// are serialized and written through to disk before returning.
type Store struct {
	mu     sync.RWMutex
	path   string
	record Record
	log    *slog.Logger
}

// Load reads the record at path, synthesizing and persisting defaults when
// the file is missing or corrupt, then applies environment overrides.
// Load never fails on record content; only an unwritable path is an error.
func Load(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("No storage configuration found, synthesizing defaults",
			slog.String("path", path))
		s.record = defaultRecord()
	case err != nil:
		return nil, fmt.Errorf("read storage configuration: %w", err)
	default:
		var rec Record
		if uerr := json.Unmarshal(data, &rec); uerr != nil {
			log.Error("Storage configuration unparsable, replacing with defaults",
				slog.String("path", path), "err", uerr)
			s.record = defaultRecord()
		} else {
			s.record = rec
			normalize(&s.record)
		}
	}

	applyEnv(&s.record, log)

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultRecord() Record {
	categories := make(map[string]CategorySettings, len(interfaces.Categories))
	for _, c := range interfaces.Categories {
		categories[c.String()] = CategorySettings{Backend: interfaces.BackendLocal}
	}
	return Record{
		Version:    1,
		Categories: categories,
		Backup: BackupSettings{
			AutoSplit:   true,
			MaxSizeMB:   4096,
			ChunkSizeMB: 512,
			Compression: true,
		},
		Transfer: TransferSettings{
			RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
			ChunkSizeMB:           DefaultChunkSizeMB,
			UploadConcurrency:     DefaultUploadConcurrency,
			CacheTTLSeconds:       DefaultCacheTTLSeconds,
			CacheCapacity:         DefaultCacheCapacity,
			PoolSize:              DefaultPoolSize,
			PoolMaxSize:           DefaultPoolMaxSize,
		},
	}
}

// normalize backfills zero tuning values and missing category entries so a
// record written by an older version stays usable.
func normalize(rec *Record) {
	if rec.Categories == nil {
		rec.Categories = make(map[string]CategorySettings)
	}
	for _, c := range interfaces.Categories {
		if _, ok := rec.Categories[c.String()]; !ok {
			rec.Categories[c.String()] = CategorySettings{Backend: interfaces.BackendLocal}
		}
	}
	def := defaultRecord().Transfer
	t := &rec.Transfer
	if t.RequestTimeoutSeconds <= 0 {
		t.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if t.ChunkSizeMB <= 0 {
		t.ChunkSizeMB = def.ChunkSizeMB
	}
	if t.UploadConcurrency <= 0 {
		t.UploadConcurrency = def.UploadConcurrency
	}
	if t.CacheTTLSeconds <= 0 {
		t.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if t.CacheCapacity <= 0 {
		t.CacheCapacity = def.CacheCapacity
	}
	if t.PoolSize <= 0 {
		t.PoolSize = def.PoolSize
	}
	if t.PoolMaxSize <= 0 {
		t.PoolMaxSize = def.PoolMaxSize
	}
	if rec.Version <= 0 {
		rec.Version = 1
	}
}

// applyEnv overrides persisted values from the process environment.
// Overrides do not bump the version: they are per-process, not mutations.
func applyEnv(rec *Record, log *slog.Logger) {
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		kind, err := interfaces.ParseBackendKind(v)
		if err != nil {
			log.Warn("Ignoring invalid STORAGE_BACKEND override", slog.String("value", v))
		} else {
			for name, cat := range rec.Categories {
				cat.Backend = kind
				rec.Categories[name] = cat
			}
		}
	}

	if v := os.Getenv("OBJECTSTORE_ENDPOINT"); v != "" {
		rec.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("OBJECTSTORE_ACCESS_KEY"); v != "" {
		rec.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("OBJECTSTORE_SECRET_KEY"); v != "" {
		rec.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("OBJECTSTORE_BUCKET"); v != "" {
		rec.ObjectStore.Bucket = v
	}
	if v, ok := envBool("OBJECTSTORE_SECURE", log); ok {
		rec.ObjectStore.Secure = v
	}
	if v := os.Getenv("CLOUDDRIVE_OAUTH_TOKEN"); v != "" {
		rec.CloudDrive.OAuthToken = v
		rec.CloudDrive.Enabled = true
	}

	envInt("CLOUDDRIVE_TIMEOUT_SECONDS", &rec.Transfer.RequestTimeoutSeconds, log)
	envInt("CLOUDDRIVE_CHUNK_SIZE_MB", &rec.Transfer.ChunkSizeMB, log)
	envInt("CLOUDDRIVE_UPLOAD_CONCURRENCY", &rec.Transfer.UploadConcurrency, log)
	envInt("CLOUDDRIVE_CACHE_TTL_SECONDS", &rec.Transfer.CacheTTLSeconds, log)
	envInt("CLOUDDRIVE_CACHE_CAPACITY", &rec.Transfer.CacheCapacity, log)
	envInt("CLOUDDRIVE_POOL_SIZE", &rec.Transfer.PoolSize, log)
}

func envInt(name string, dst *int, log *slog.Logger) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn("Ignoring invalid environment override",
			slog.String("name", name), slog.String("value", v))
		return
	}
	*dst = n
}

func envBool(name string, log *slog.Logger) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("Ignoring invalid environment override",
			slog.String("name", name), slog.String("value", v))
		return false, false
	}
	return b, true
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Record {
	rec := s.record
	rec.Categories = make(map[string]CategorySettings, len(s.record.Categories))
	for k, v := range s.record.Categories {
		rec.Categories[k] = v
	}
	return rec
}

// Version returns the current record version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Version
}

// BackendFor returns the configured backend for a content category.
// Categories without an explicit entry route to local storage.
func (s *Store) BackendFor(category interfaces.ContentCategory) interfaces.BackendKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cat, ok := s.record.Categories[category.String()]; ok {
		return cat.Backend
	}
	return interfaces.BackendLocal
}

// CategoryFor returns the full per-category settings.
func (s *Store) CategoryFor(category interfaces.ContentCategory) CategorySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Categories[category.String()]
}

// CloudDrive returns the global cloud-drive settings.
func (s *Store) CloudDrive() CloudDriveSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.CloudDrive
}

// ObjectStore returns the object-store settings.
func (s *Store) ObjectStore() ObjectStoreSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.ObjectStore
}

// Transfer returns the transfer tuning.
func (s *Store) Transfer() TransferSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Transfer
}

// Backup returns the backup pass-through settings.
func (s *Store) Backup() BackupSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Backup
}

// SetCategory routes a content category to a backend and persists the
// change. Callers must invalidate the manager's adapter cache for the
// category afterwards.
func (s *Store) SetCategory(category interfaces.ContentCategory, settings CategorySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Categories[category.String()] = settings
	return s.bumpAndPersistLocked()
}

// SetCloudDrive replaces the global cloud-drive settings and persists.
func (s *Store) SetCloudDrive(settings CloudDriveSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.CloudDrive = settings
	return s.bumpAndPersistLocked()
}

// SetObjectStore replaces the object-store settings and persists.
func (s *Store) SetObjectStore(settings ObjectStoreSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.ObjectStore = settings
	return s.bumpAndPersistLocked()
}

// SetTransfer replaces the transfer tuning and persists. Zero fields are
// backfilled with defaults.
func (s *Store) SetTransfer(settings TransferSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Transfer = settings
	normalize(&s.record)
	return s.bumpAndPersistLocked()
}

// SetBackup replaces the backup pass-through settings and persists.
func (s *Store) SetBackup(settings BackupSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Backup = settings
	return s.bumpAndPersistLocked()
}

func (s *Store) bumpAndPersistLocked() error {
	s.record.Version++
	return s.persistLocked()
}

// persistLocked writes the record through a temp file and rename so a
// crash mid-write never leaves a corrupt record behind.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage configuration: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create configuration directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".storage-config-*")
	if err != nil {
		return fmt.Errorf("create temp configuration file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close configuration file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace configuration file: %w", err)
	}

	s.log.Debug("Persisted storage configuration",
		slog.String("path", s.path),
		slog.Int("version", s.record.Version))
	return nil
}
