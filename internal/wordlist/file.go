package wordlist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps the list as a JSON document on disk.
type FileStore struct {
	path   string
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) WordList {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return WordList{}
	}
	if err != nil {
		s.logger.Warn("word list unreadable", zap.String("path", s.path), zap.Error(err))
		return WordList{}
	}
	wl, err := decode(b)
	if err != nil {
		s.logger.Warn("word list malformed", zap.String("path", s.path), zap.Error(err))
		return WordList{}
	}
	return wl
}

// Replace writes the new document beside the old one and renames it into
// place, so readers see either the old or the new list.
func (s *FileStore) Replace(ctx context.Context, banned, flagged []string) error {
	_ = ctx
	b, err := encode(banned, flagged)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir word list dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".wordlist-*.json")
	if err != nil {
		return fmt.Errorf("create temp word list: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write word list: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync word list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close word list: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod word list: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("swap word list: %w", err)
	}
	return nil
}
