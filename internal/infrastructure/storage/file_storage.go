// Package storage keeps uploaded leaf images on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const fileScheme = "file://"

// ErrPathEscapesBase is returned for paths outside the store's directory
var ErrPathEscapesBase = errors.New("path escapes base directory")

// LocalImageStore implements port.ImageStore for the local filesystem.
// URIs are "file://" URLs of absolute paths under baseDir.
type LocalImageStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalImageStore creates a store rooted at baseDir
func NewLocalImageStore(baseDir string, logger *zap.Logger) (*LocalImageStore, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	return &LocalImageStore{
		baseDir: absBase,
		logger:  logger,
	}, nil
}

// Save writes content under the relative name and returns its file URI
func (s *LocalImageStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	fullPath := s.GetFullPath(name)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write image",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	s.logger.Debug("Image saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return toFileURI(fullPath), nil
}

// Load reads the image behind a file URI, an absolute path or a path relative to the base
func (s *LocalImageStore) Load(ctx context.Context, uri string) ([]byte, error) {
	fullPath, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read image",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return content, nil
}

// Delete removes the image. Missing files are not an error.
func (s *LocalImageStore) Delete(ctx context.Context, uri string) error {
	fullPath, err := s.resolve(uri)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete image",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// GetFullPath converts a relative name to a full path
func (s *LocalImageStore) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// BaseDir returns the absolute root directory
func (s *LocalImageStore) BaseDir() string {
	return s.baseDir
}

func (s *LocalImageStore) resolve(uri string) (string, error) {
	p := uri
	if strings.HasPrefix(uri, fileScheme) {
		u, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("invalid file uri %q: %w", uri, err)
		}
		p = u.Path
	}
	if !filepath.IsAbs(p) {
		p = s.GetFullPath(p)
	}
	if err := s.validatePath(p); err != nil {
		return "", err
	}
	return p, nil
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalImageStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathEscapesBase, fullPath)
	}
	return nil
}

func toFileURI(absPath string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String()
}
