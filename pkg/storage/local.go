package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
)

const localScheme = "local://"

// LocalStore writes files below a root directory.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root, logger: logger.Named("storage.local")}, nil
}

func (s *LocalStore) Put(ctx context.Context, companyID uuid.UUID, category, name string, data []byte) (string, error) {
	key := objectKey(companyID, category, name)
	full := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", externalError("create directory", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", externalError("write file", err)
	}

	s.logger.Debug("Stored file", zap.String("key", key), zap.Int("bytes", len(data)))
	return localScheme + key, nil
}

func (s *LocalStore) Get(ctx context.Context, companyID uuid.UUID, url string) ([]byte, error) {
	key, err := keyFromURL(companyID, url, localScheme)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %q: %w", url, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, externalError("read file", err)
	}
	return data, nil
}

var _ FileStore = (*LocalStore)(nil)
