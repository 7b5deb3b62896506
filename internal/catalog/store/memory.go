package store

import (
	"context"
	"strings"
	"sync"

	"circulate/internal/catalog/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

// InMemory keeps catalog items in a map. Unit tests and the dev profile use
// it in place of Postgres; the method set mirrors the Postgres store.
type InMemory struct {
	mu     sync.RWMutex
	nextID id.ItemID
	items  map[id.ItemID]models.Item
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.ItemID]models.Item)}
}

func (s *InMemory) Create(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	item.ID = s.nextID
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) FindByID(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &item, nil
}

// GetForUpdate matches the Postgres store's row-lock accessor. The in-memory
// unit of work serializes per item, so a plain read suffices here.
func (s *InMemory) GetForUpdate(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	return s.FindByID(ctx, itemID)
}

func (s *InMemory) List(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Deleted {
			continue
		}
		it := item
		items = append(items, &it)
	}
	return items, nil
}

func (s *InMemory) Search(_ context.Context, filter models.SearchFilter) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contains := func(haystack, needle string) bool {
		return needle == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}

	var items []*models.Item
	for _, item := range s.items {
		if item.Deleted {
			continue
		}
		if !contains(item.Title, filter.Title) ||
			!contains(item.Author, filter.Author) ||
			!contains(item.AuthorNationality, filter.AuthorNationality) ||
			!contains(item.Topic, filter.Topic) {
			continue
		}
		if filter.PublicationYear != 0 && item.PublicationYear != filter.PublicationYear {
			continue
		}
		it := item
		items = append(items, &it)
	}
	return items, nil
}

func (s *InMemory) Update(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) SetAvailability(_ context.Context, itemID id.ItemID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return sentinel.ErrNotFound
	}
	item.Available = available
	s.items[itemID] = item
	return nil
}
