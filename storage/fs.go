package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSSink stores artifacts as files under a local root directory.
// Writes go through a temp file in the destination directory followed by
// a rename, so a concurrent reader never observes a partial artifact.
type FSSink struct {
	root string // absolute
}

// NewFS creates a filesystem sink rooted at dir, creating it if needed.
func NewFS(dir string) (*FSSink, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", classifyFSErr(err), abs, err)
	}
	return &FSSink{root: abs}, nil
}

// Put writes content to <root>/<key> atomically. contentType is ignored —
// the filesystem has no content-type metadata.
func (s *FSSink) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir for %s: %v", classifyFSErr(err), key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", fmt.Errorf("%w: temp for %s: %v", classifyFSErr(err), key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: write %s: %v", classifyFSErr(err), key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: close %s: %v", classifyFSErr(err), key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: rename %s: %v", classifyFSErr(err), key, err)
	}

	return "file://" + dst, nil
}

// Get reads back the artifact stored under key.
func (s *FSSink) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", classifyFSErr(err), key, err)
	}
	return data, nil
}

// Exists reports whether key holds an artifact.
func (s *FSSink) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", classifyFSErr(err), key, err)
}

// ResolveRoot returns the file:// URI of a document's extracted-text folder.
func (s *FSSink) ResolveRoot(docID string) string {
	return "file://" + filepath.Join(s.root, docID, "extracted_text")
}

func (s *FSSink) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func classifyFSErr(err error) error {
	if os.IsPermission(err) {
		return ErrPermission
	}
	return ErrUnavailable
}
