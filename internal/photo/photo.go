// Package photo stores visitor photos on local disk, S3 or Cloudinary.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a photo reference does not resolve.
var ErrNotFound = errors.New("photo not found")

// Store keeps uploaded photos and returns a reference that can be opened later.
type Store interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// FileName builds the stored name "<unix-millis>-<original base name>".
func FileName(now time.Time, originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		if r < ' ' {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		base = "photo"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}

// LocalStore writes photos under a directory on local disk.
type LocalStore struct {
	Dir string
	now func() time.Time
}

// NewLocalStore creates the upload directory when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir, now: time.Now}, nil
}

// Save writes r to a new file and returns its file name.
func (s *LocalStore) Save(_ context.Context, originalName string, r io.Reader) (string, error) {
	name := FileName(s.now(), originalName)
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write photo file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close photo file: %w", err)
	}
	return name, nil
}

// Open returns the stored file.
func (s *LocalStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the stored file. Missing files are ignored.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", ErrNotFound
	}
	return filepath.Join(s.Dir, ref), nil
}
