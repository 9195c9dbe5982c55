package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists records as a single JSON document on disk, the usual
// shape for a client-side token cache. Writes go through a temp file and
// rename so a crash never leaves a torn document. The file is created with
// 0600 permissions.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Records     map[string]Record `json:"records"`
	SharedToken string            `json:"sharedToken,omitempty"`
}

// NewFileStore creates a store backed by path. The parent directory is
// created if needed; the file itself appears on first save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating token store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(_ context.Context, gameID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Records[gameID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *FileStore) Save(_ context.Context, gameID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Records[gameID] = rec
	return s.write(doc)
}

func (s *FileStore) Clear(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	delete(doc.Records, gameID)
	return s.write(doc)
}

func (s *FileStore) LoadShared(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc.SharedToken, nil
}

func (s *FileStore) SaveShared(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.SharedToken = token
	return s.write(doc)
}

func (s *FileStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token store: %w", err)
	}
	return nil
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{Records: make(map[string]Record)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading token store: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing token store: %w", err)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]Record)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing token store: %w", err)
	}
	return nil
}
