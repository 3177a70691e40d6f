package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store reads and writes whole objects by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// URI renders a key the way it is recorded in run provenance.
	URI(key string) string
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Content types of the written objects.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// New builds the store selected by STORE_BACKEND.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewMinioStore(MinioOptions{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, logger)
	case config.BackendLocal:
		return NewFSStore(afero.NewOsFs(), cfg.LocalRoot), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// ContentTypeFor guesses the content type from the key extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return ContentTypeJSON
	case ".xlsx":
		return ContentTypeXLSX
	default:
		return ContentTypeCSV
	}
}

// Join builds a key from parts, dropping empty parts and duplicate slashes.
func Join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
