// Package local persists discovery manifests on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/hash/sha256"
)

// Config captures the parameters for the local manifest store.
type Config struct {
	// BaseDir is the directory manifests are written into.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// PutResult describes the outcome of a Put.
type PutResult struct {
	Path    string
	Digest  string
	Changed bool
}

// Store writes manifests atomically and skips writes whose content is unchanged.
type Store struct {
	baseDir string
	hasher  *sha256.Hasher
	logger  *zap.Logger
}

// New creates a new local filesystem-backed manifest store.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{
		baseDir: cfg.BaseDir,
		hasher:  sha256.New(),
		logger:  logger,
	}, nil
}

// Put writes data to name under the base directory. The file is replaced via
// a temporary file and rename, and left alone when its digest already matches.
func (s *Store) Put(ctx context.Context, name string, data []byte) (PutResult, error) {
	if strings.TrimSpace(name) == "" {
		return PutResult{}, fmt.Errorf("name is required")
	}
	if err := ctx.Err(); err != nil {
		return PutResult{}, fmt.Errorf("put %s: %w", name, err)
	}

	cleanFullPath, err := s.resolve(name)
	if err != nil {
		return PutResult{}, err
	}

	digest := s.hasher.Hash(data)
	existing, ok, err := s.hasher.HashFile(cleanFullPath)
	if err != nil {
		return PutResult{}, err
	}
	if ok && existing == digest {
		s.logger.Debug("manifest unchanged", zap.String("path", cleanFullPath), zap.String("sha256", digest))
		return PutResult{Path: cleanFullPath, Digest: digest}, nil
	}

	dir := filepath.Dir(cleanFullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return PutResult{}, fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := writeAtomic(dir, cleanFullPath, data); err != nil {
		return PutResult{}, err
	}

	s.logger.Info("manifest written",
		zap.String("path", cleanFullPath),
		zap.String("sha256", digest),
		zap.Int("bytes", len(data)),
	)
	return PutResult{Path: cleanFullPath, Digest: digest, Changed: true}, nil
}

// resolve joins name onto the base directory and rejects results that escape
// it. The base directory itself is not a valid target.
func (s *Store) resolve(name string) (string, error) {
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(filepath.Join(cleanBaseDir, name))
	rel, err := filepath.Rel(cleanBaseDir, cleanFullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return cleanFullPath, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
