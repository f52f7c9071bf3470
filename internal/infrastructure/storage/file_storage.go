// Package storage writes generated artefacts below a base directory on the
// local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/port"
)

// ErrPathEscapesBase is returned for paths that resolve outside the base directory
var ErrPathEscapesBase = errors.New("path escapes base directory")

// LocalFileStorage implements port.FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

var _ port.FileStorage = (*LocalFileStorage)(nil)

// NewLocalFileStorage creates a new LocalFileStorage rooted at baseDir
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to relPath, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func (s *LocalFileStorage) Save(ctx context.Context, relPath string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		s.logger.Error("Failed to move file into place", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", fullPath), zap.Int("size", len(content)))
	return nil
}

// Read returns the content at relPath
func (s *LocalFileStorage) Read(ctx context.Context, relPath string) ([]byte, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a regular file exists at relPath
func (s *LocalFileStorage) Exists(ctx context.Context, relPath string) bool {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the file at relPath. A missing file is not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, relPath string) error {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetFullPath joins relPath onto the base directory without validating it
func (s *LocalFileStorage) GetFullPath(relPath string) string {
	return filepath.Join(s.baseDir, relPath)
}

// resolve returns the absolute path for relPath, rejecting anything outside baseDir
func (s *LocalFileStorage) resolve(relPath string) (string, error) {
	fullPath := s.GetFullPath(relPath)
	rel, err := filepath.Rel(s.baseDir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesBase, relPath)
	}
	return fullPath, nil
}
