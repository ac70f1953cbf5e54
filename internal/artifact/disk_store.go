package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore persists artifacts under root/<sessionID>/<path>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("artifact: disk root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

func (s *DiskStore) Put(_ context.Context, sessionID, path string, content []byte) error {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	// Write then rename so readers never see a partial file.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

func (s *DiskStore) Get(_ context.Context, sessionID, path string) ([]byte, error) {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DiskStore) URL(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *DiskStore) List(_ context.Context, sessionID string) ([]string, error) {
	sessionRoot, err := s.sessionRoot(sessionID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, 8)
	walkErr := filepath.WalkDir(sessionRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(sessionRoot, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, walkErr
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *DiskStore) sessionRoot(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	if strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid session_id: %s", sessionID)
	}
	return filepath.Join(s.root, sessionID), nil
}

func (s *DiskStore) pathFor(sessionID, path string) (string, error) {
	sessionID, path, err := validate(sessionID, path)
	if err != nil {
		return "", err
	}
	sessionRoot, err := s.sessionRoot(sessionID)
	if err != nil {
		return "", err
	}
	full := filepath.Join(sessionRoot, filepath.FromSlash(path))
	rel, err := filepath.Rel(sessionRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(path) {
		return "", fmt.Errorf("invalid path: %s", path)
	}
	return full, nil
}
