// Package documents persists the HTML documents the assistant creates
// and edits.
//
// Documents live in one JSON file as an array in creation order,
// rewritten on every mutation through a temp file and rename. Nothing
// is ever deleted.
package documents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Document is one stored HTML document.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store holds documents in creation order, backed by a single JSON
// file.
type Store struct {
	mu   sync.Mutex
	path string
	docs []Document
}

// NewStore opens the store at path, creating parent directories as
// needed. A missing file is an empty store.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.docs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Create stores content as a new document and returns it. IDs are
// UUIDv7, so listing order and id order agree.
func (s *Store) Create(content string) (*Document, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}

	now := time.Now().UTC()
	doc := Document{
		ID:        id.String(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Get returns a copy of the document with the given id.
func (s *Store) Get(id string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			doc := s.docs[i]
			return &doc, true
		}
	}
	return nil, false
}

// Update replaces the content of the document with the given id and
// advances its updatedAt. An unknown id reports found=false and
// changes nothing.
func (s *Store) Update(id, content string) (*Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID != id {
			continue
		}

		now := time.Now().UTC()
		// Coarse clocks can tie consecutive stamps.
		if !now.After(s.docs[i].UpdatedAt) {
			now = s.docs[i].UpdatedAt.Add(time.Nanosecond)
		}
		s.docs[i].Content = content
		s.docs[i].UpdatedAt = now

		if err := s.saveLocked(); err != nil {
			return nil, true, err
		}
		doc := s.docs[i]
		return &doc, true, nil
	}
	return nil, false, nil
}

// All returns a snapshot of every document in creation order.
func (s *Store) All() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// saveLocked writes the document list to disk. Callers hold s.mu.
func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding documents: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".documents-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
