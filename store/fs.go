package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps each document as a file under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(s.Dir, name), nil
}

func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

// Save writes every document to a temp file first and only renames them into
// place once all writes succeeded, so a failed save leaves old files intact.
func (s *FileStore) Save(ctx context.Context, docs ...Document) error {
	type staged struct{ tmp, dst string }
	var done []staged
	cleanup := func() {
		for _, st := range done {
			_ = os.Remove(st.tmp)
		}
	}

	for _, d := range docs {
		dst, err := s.path(d.Name)
		if err != nil {
			cleanup()
			return err
		}
		f, err := os.CreateTemp(s.Dir, "."+d.Name+".tmp-*")
		if err != nil {
			cleanup()
			return err
		}
		done = append(done, staged{tmp: f.Name(), dst: dst})
		if _, err := f.Write(d.Body); err != nil {
			f.Close()
			cleanup()
			return fmt.Errorf("write %s: %w", d.Name, err)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return fmt.Errorf("close %s: %w", d.Name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}
	for i, st := range done {
		if err := os.Rename(st.tmp, st.dst); err != nil {
			for _, rest := range done[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("replace %s: %w", filepath.Base(st.dst), err)
		}
	}
	return nil
}
