package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a filesystem store rooted at root.
func NewFSStore(fsys afero.Fs, root string) *FSStore {
	return &FSStore{fs: fsys, root: filepath.Clean(root)}
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimLeft(key, "/")))
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) URI(key string) string {
	return "file://" + filepath.ToSlash(s.path(key))
}

func (s *FSStore) Ping(_ context.Context) error {
	if _, err := s.fs.Stat(s.root); err != nil {
		return fmt.Errorf("store root %s: %w", s.root, err)
	}
	return nil
}
