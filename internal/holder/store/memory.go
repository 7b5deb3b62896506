package store

import (
	"context"
	"sync"

	"circulate/internal/holder/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

// InMemory keeps holders in a map. The identity provider owns holder
// records; this store only mirrors what the core needs for existence checks.
type InMemory struct {
	mu      sync.RWMutex
	nextID  id.HolderID
	holders map[id.HolderID]models.Holder
}

func NewInMemory() *InMemory {
	return &InMemory{holders: make(map[id.HolderID]models.Holder)}
}

func (s *InMemory) Create(_ context.Context, holder *models.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if holder.ID == 0 {
		s.nextID++
		holder.ID = s.nextID
	} else if holder.ID > s.nextID {
		s.nextID = holder.ID
	}
	s.holders[holder.ID] = *holder
	return nil
}

func (s *InMemory) FindByID(_ context.Context, holderID id.HolderID) (*models.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holder, ok := s.holders[holderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &holder, nil
}
