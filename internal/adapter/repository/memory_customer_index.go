package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
)

// MemoryCustomerIndex is an in-process customer index used when no database
// is configured.
type MemoryCustomerIndex struct {
	mu      sync.RWMutex
	entries map[string]*entity.CustomerIndexEntry
}

// NewMemoryCustomerIndex creates an empty index
func NewMemoryCustomerIndex() *MemoryCustomerIndex {
	return &MemoryCustomerIndex{entries: make(map[string]*entity.CustomerIndexEntry)}
}

func (m *MemoryCustomerIndex) Upsert(_ context.Context, customerID, userID string, source entity.IndexSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.entries[customerID]; ok {
		existing.UserID = userID
		existing.Source = source
		existing.UpdatedAt = now
		return nil
	}
	m.entries[customerID] = &entity.CustomerIndexEntry{
		ID:                 uuid.NewString(),
		ProviderCustomerID: customerID,
		UserID:             userID,
		Source:             source,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}

func (m *MemoryCustomerIndex) GetByCustomerID(_ context.Context, customerID string) (*entity.CustomerIndexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[customerID]
	if !ok {
		return nil, nil
	}
	out := *entry
	return &out, nil
}

func (m *MemoryCustomerIndex) GetByUserID(_ context.Context, userID string) (*entity.CustomerIndexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entity.CustomerIndexEntry
	for _, entry := range m.entries {
		if entry.UserID != userID {
			continue
		}
		if latest == nil || entry.UpdatedAt.After(latest.UpdatedAt) {
			latest = entry
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// Len returns the number of indexed customers.
func (m *MemoryCustomerIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
