package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"go.uber.org/zap"
)

// LocalDocumentStorage implements port.DocumentStorage on the local filesystem.
// Every tenant gets its own directory under baseDir.
type LocalDocumentStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalDocumentStorage creates a new LocalDocumentStorage
func NewLocalDocumentStorage(baseDir string, logger *zap.Logger) *LocalDocumentStorage {
	return &LocalDocumentStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to path inside the tenant directory
func (s *LocalDocumentStorage) Save(ctx context.Context, tenantID, path string, content []byte) error {
	fullPath, err := s.resolve(tenantID, path)
	if err != nil {
		return err
	}

	// Create parent directories
	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Write to a temp file first so readers never see a partial document
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("Document saved",
		zap.String("tenant_id", tenantID),
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return nil
}

// Read reads content from path inside the tenant directory
func (s *LocalDocumentStorage) Read(ctx context.Context, tenantID, path string) ([]byte, error) {
	fullPath, err := s.resolve(tenantID, path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Exists checks if a document exists inside the tenant directory
func (s *LocalDocumentStorage) Exists(ctx context.Context, tenantID, path string) bool {
	fullPath, err := s.resolve(tenantID, path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// resolve maps a tenant-relative path to a full path and rejects escapes
func (s *LocalDocumentStorage) resolve(tenantID, path string) (string, error) {
	if tenantID == "" || strings.ContainsAny(tenantID, `/\`) || tenantID == "." || tenantID == ".." {
		return "", fmt.Errorf("invalid tenant id: %q", tenantID)
	}

	tenantDir := filepath.Join(s.baseDir, tenantID)
	fullPath := filepath.Join(tenantDir, path)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(tenantDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes tenant directory: %s", path)
	}

	return fullPath, nil
}

// Verify interface compliance
var _ port.DocumentStorage = (*LocalDocumentStorage)(nil)
