package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	almalead "github.com/phbpx/almalead"
)

// LocalStorage keeps resumes on the local filesystem under a root directory.
type LocalStorage struct {
	root       string
	publicBase string
	policy     Policy
	now        func() time.Time
}

func NewLocalStorage(root, publicBase string, policy Policy) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", almalead.ErrStorage, root, err)
	}
	return &LocalStorage{
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
		policy:     policy,
		now:        time.Now,
	}, nil
}

// Root is the directory resumes are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) Store(ctx context.Context, upload almalead.Upload) (string, error) {
	if err := s.policy.Check(upload.Filename, upload.ContentType, upload.Size); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", almalead.ErrStorage, err)
	}

	key := NewKey(upload.Filename, s.now().UTC())
	path := s.path(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", almalead.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %v", almalead.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	// Never write more than the declared size plus one byte, so a lying
	// client cannot exceed the limit.
	n, err := io.Copy(tmp, io.LimitReader(upload.Body, upload.Size+1))
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write %s: %v", almalead.ErrStorage, key, err)
	}
	if n != upload.Size {
		tmp.Close()
		return "", fmt.Errorf("%w: wrote %d bytes, declared %d", almalead.ErrStorage, n, upload.Size)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: sync %s: %v", almalead.ErrStorage, key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", almalead.ErrStorage, key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: rename %s: %v", almalead.ErrStorage, key, err)
	}
	return key, nil
}

func (s *LocalStorage) URL(key string) string {
	return s.publicBase + "/" + key
}

func (s *LocalStorage) Remove(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return almalead.ErrResumeNotFound
		}
		return fmt.Errorf("%w: remove %s: %v", almalead.ErrStorage, key, err)
	}
	return nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(filepath.Clean("/"+key)))
}
