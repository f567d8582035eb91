package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
)

// MemoryMetadataStore keeps metadata documents in process. Values are
// normalised through JSON so callers see the same shapes the identity
// provider returns.
type MemoryMetadataStore struct {
	mu    sync.RWMutex
	docs  map[string]*entity.MetadataDocument
	order []string
}

// NewMemoryMetadataStore creates an empty store
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{docs: make(map[string]*entity.MetadataDocument)}
}

// Put creates or replaces a document.
func (s *MemoryMetadataStore) Put(doc *entity.MetadataDocument) error {
	normalised, err := normalise(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.UserID]; !ok {
		s.order = append(s.order, doc.UserID)
	}
	s.docs[doc.UserID] = normalised
	return nil
}

func (s *MemoryMetadataStore) Get(_ context.Context, userID string) (*entity.MetadataDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	return normalise(doc)
}

func (s *MemoryMetadataStore) Merge(_ context.Context, userID string, patch entity.MetadataPatch) (*entity.MetadataDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	merged, err := normalise(patch.Apply(doc))
	if err != nil {
		return nil, err
	}
	s.docs[userID] = merged
	return normalise(merged)
}

func (s *MemoryMetadataStore) List(_ context.Context, offset, limit int) ([]*entity.MetadataDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return nil, nil
	}
	end := len(s.order)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*entity.MetadataDocument, 0, end-offset)
	for _, id := range s.order[offset:end] {
		doc, err := normalise(s.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// normalise returns a deep copy of doc with JSON-shaped values.
func normalise(doc *entity.MetadataDocument) (*entity.MetadataDocument, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out entity.MetadataDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.Private == nil {
		out.Private = entity.Partition{}
	}
	if out.Public == nil {
		out.Public = entity.Partition{}
	}
	return &out, nil
}
