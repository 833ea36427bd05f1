// Package file provides a directory-backed write-through sink. Each store key
// is kept in its own JSON file and replaced atomically on save.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DriverName identifies the file sink in logs and configuration.
	DriverName = "file"
	extension  = ".json"
)

// Sentinel errors wrapped by every failure so callers can branch on the phase.
var (
	ErrLoadFailed = errors.New("file sink load failed")
	ErrSaveFailed = errors.New("file sink save failed")
	ErrInvalidKey = errors.New("invalid store key")
)

// Sink persists store keys under a root directory.
type Sink struct {
	root string
}

// New ensures root exists and returns a sink rooted there.
func New(root string) (*Sink, error) {
	if root == "" {
		return nil, fmt.Errorf("file sink: directory required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("file sink: create %s: %w", root, err)
	}
	return &Sink{root: root}, nil
}

// Driver implements store.Sink.
func (s *Sink) Driver() string { return DriverName }

// Root returns the backing directory.
func (s *Sink) Root() string { return s.root }

func (s *Sink) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, key+extension), nil
}

// Load reads every key file under root. Hidden files and leftovers from
// interrupted saves are skipped.
func (s *Sink) Load(_ context.Context) (map[string][]byte, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, extension) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
		}
		out[strings.TrimSuffix(name, extension)] = data
	}
	return out, nil
}

// Save writes payload to a temporary file and renames it over the key file.
func (s *Sink) Save(_ context.Context, key string, payload []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return nil
}

// Delete removes the key file. Missing files are ignored.
func (s *Sink) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file sink delete %s: %w", key, err)
	}
	return nil
}

// Clear removes every key file under root.
func (s *Sink) Clear(ctx context.Context) error {
	keys, err := s.Load(ctx)
	if err != nil {
		return err
	}
	for key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
