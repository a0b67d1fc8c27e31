package views

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rowkit/rowkit/pkg/errors"
)

// FileStore persists views as TOML files in a config directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based view store.
// If baseDir is empty, defaults to ~/.config/rowkit/views/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "rowkit", "views")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create view dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) viewPath(name string) string {
	return filepath.Join(s.baseDir, name+".toml")
}

// Save stores a view under its name, overwriting any previous version.
// CreatedAt is preserved across overwrites; UpdatedAt is always refreshed.
func (s *FileStore) Save(v View) error {
	if err := errors.ValidateViewName(v.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.read(v.Name); err == nil && !prev.CreatedAt.IsZero() {
		v.CreatedAt = prev.CreatedAt
	} else if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.UpdatedAt = time.Now()

	f, err := os.Create(s.viewPath(v.Name))
	if err != nil {
		return fmt.Errorf("create view file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encode view %s: %w", v.Name, err)
	}
	return nil
}

// Load retrieves a view by name.
func (s *FileStore) Load(name string) (View, error) {
	if err := errors.ValidateViewName(name); err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(name)
}

func (s *FileStore) read(name string) (View, error) {
	data, err := os.ReadFile(s.viewPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return View{}, errors.New(errors.ErrCodeNotFound, "view %q not found", name)
		}
		return View{}, fmt.Errorf("read view file: %w", err)
	}

	var v View
	if err := toml.Unmarshal(data, &v); err != nil {
		return View{}, errors.Wrap(errors.ErrCodeInvalidView, err, "view %q is malformed", name)
	}
	if v.Name == "" {
		v.Name = name
	}
	return v, nil
}

// List returns the names of all saved views, sorted.
func (s *FileStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read view dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a view. Deleting a missing view is not an error.
func (s *FileStore) Delete(name string) error {
	if err := errors.ValidateViewName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.viewPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove view file: %w", err)
	}
	return nil
}

// Path returns the base directory for view files.
func (s *FileStore) Path() string {
	return s.baseDir
}
