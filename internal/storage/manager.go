// Package storage keeps layout documents (seed JSON exports and imports) on disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fas-floormap/backend/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown layout ids.
var ErrNotFound = errors.New("layout not found")

const indexFile = "index.json"

// Store defines the interface for layout storage.
type Store interface {
	Save(name, source string, entityCount int, r io.Reader) (*models.LayoutFile, error)
	Get(id string) (*models.LayoutFile, error)
	Open(id string) (io.ReadCloser, error)
	List(limit int) ([]*models.LayoutFile, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.LayoutFile, error)
	GetFilePath(id string) (string, error)
}

// LocalStore implements Store using the local filesystem. Metadata is kept
// in an index file next to the documents so it survives restarts.
type LocalStore struct {
	mu        sync.RWMutex
	layoutDir string
	files     map[string]*models.LayoutFile
}

// NewLocalStore creates a new LocalStore, loading any existing index.
func NewLocalStore(layoutDir string) (*LocalStore, error) {
	if err := os.MkdirAll(layoutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating layout directory: %w", err)
	}

	s := &LocalStore{
		layoutDir: layoutDir,
		files:     make(map[string]*models.LayoutFile),
	}
	if err := s.loadIndex(); err != nil {
		fmt.Printf("[Storage] Ignoring unreadable index: %v\n", err)
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.layoutDir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var list []*models.LayoutFile
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decoding index: %w", err)
	}
	for _, info := range list {
		if _, err := os.Stat(filepath.Join(s.layoutDir, info.ID)); err == nil {
			s.files[info.ID] = info
		}
	}
	return nil
}

// saveIndex must be called with s.mu held.
func (s *LocalStore) saveIndex() error {
	list := make([]*models.LayoutFile, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	tmp := filepath.Join(s.layoutDir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.layoutDir, indexFile))
}

// Save stores a layout document.
func (s *LocalStore) Save(name, source string, entityCount int, r io.Reader) (*models.LayoutFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.layoutDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.LayoutFile{
		ID:          id,
		Name:        name,
		Size:        size,
		SavedAt:     time.Now(),
		EntityCount: entityCount,
		Source:      source,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.saveIndex(); err != nil {
		return nil, err
	}

	cp := *info
	return &cp, nil
}

// Get retrieves layout metadata by ID.
func (s *LocalStore) Get(id string) (*models.LayoutFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *info
	return &cp, nil
}

// Open returns a reader over the layout document.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening layout: %w", err)
	}
	return f, nil
}

// List returns the most recent layouts.
func (s *LocalStore) List(limit int) ([]*models.LayoutFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.LayoutFile, 0, len(s.files))
	for _, info := range s.files {
		cp := *info
		list = append(list, &cp)
	}

	// Sort by SavedAt desc
	sort.Slice(list, func(i, j int) bool {
		return list[i].SavedAt.After(list[j].SavedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a layout from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.layoutDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return s.saveIndex()
}

// Rename updates the display name of a layout.
func (s *LocalStore) Rename(id string, newName string) (*models.LayoutFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info.Name = newName
	if err := s.saveIndex(); err != nil {
		return nil, err
	}
	cp := *info
	return &cp, nil
}

// GetFilePath returns the path to a layout document.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return filepath.Join(s.layoutDir, id), nil
}
