// Package storage keeps uploaded RFPs, templates and rendered bids.
// Objects are keyed under their company so one company can never read
// another company's files through a guessed URL.
package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
)

// Object categories.
const (
	CategoryRFP       = "rfp"
	CategoryTemplate  = "templates"
	CategoryGenerated = "generated_bids"
)

// FileStore persists opaque documents.
type FileStore interface {
	// Put stores data and returns the URL later passed to Get.
	Put(ctx context.Context, companyID uuid.UUID, category, name string, data []byte) (string, error)

	// Get returns the bytes behind url. URLs belonging to another company
	// or another backend are reported as apperrors.ErrNotFound.
	Get(ctx context.Context, companyID uuid.UUID, url string) ([]byte, error)
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (FileStore, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.LocalPath, logger)
	case "s3":
		return NewS3Store(ctx, cfg, logger)
	case "gcs":
		return NewGCSStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectKey builds companies/<company>/<category>/<random>-<name>.
func objectKey(companyID uuid.UUID, category, name string) string {
	base := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	if base == "" || base == "." || base == "_" {
		base = "file"
	}
	return path.Join("companies", companyID.String(), category, uuid.NewString()+"-"+base)
}

// keyFromURL strips scheme and bucket from url and checks that the
// remaining key belongs to companyID.
func keyFromURL(companyID uuid.UUID, url, prefix string) (string, error) {
	key, ok := strings.CutPrefix(url, prefix)
	if !ok {
		return "", fmt.Errorf("file %q: %w", url, apperrors.ErrNotFound)
	}
	clean := path.Clean(key)
	if clean != key || !strings.HasPrefix(key, path.Join("companies", companyID.String())+"/") {
		return "", fmt.Errorf("file %q: %w", url, apperrors.ErrNotFound)
	}
	return key, nil
}

func externalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrExternalFailure, err)
}
