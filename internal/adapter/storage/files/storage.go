package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidName is returned for names that would escape the storage root.
var ErrInvalidName = errors.New("invalid document name")

// Storage implements ports.DocumentStorage on an afero filesystem rooted at dir.
// Production uses the OS filesystem; tests pass afero.NewMemMapFs().
type Storage struct {
	fs  afero.Fs
	dir string
}

// NewStorage creates the root directory if needed.
func NewStorage(fs afero.Fs, dir string) (*Storage, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{fs: fs, dir: filepath.Clean(dir)}, nil
}

// Save writes content under name and returns the stored path.
func (s *Storage) Save(_ context.Context, name string, content io.Reader) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(path)
		return "", fmt.Errorf("write document file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(path)
		return "", fmt.Errorf("close document file: %w", err)
	}
	return path, nil
}

// Open returns a reader over a stored document. The caller closes it.
func (s *Storage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document file: %w", err)
	}
	return f, nil
}

// Delete removes a stored document. Missing files are not an error.
func (s *Storage) Delete(_ context.Context, path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove document file: %w", err)
	}
	return nil
}

func (s *Storage) resolve(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, base), nil
}

func (s *Storage) contains(path string) error {
	if filepath.Dir(filepath.Clean(path)) != s.dir {
		return fmt.Errorf("%w: %q is outside the storage root", ErrInvalidName, path)
	}
	return nil
}
