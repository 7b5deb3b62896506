package store

import (
	"context"
	"sync"
	"time"

	"circulate/internal/allocation/interval"
	"circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

// InMemory keeps reservations in a map. Unit tests use it in place of
// Postgres. "Maybe" finders return (nil, nil) when nothing matches;
// FindByID returns sentinel.ErrNotFound.
type InMemory struct {
	mu           sync.RWMutex
	nextID       id.ReservationID
	reservations map[id.ReservationID]models.Reservation
}

func NewInMemory() *InMemory {
	return &InMemory{reservations: make(map[id.ReservationID]models.Reservation)}
}

func (s *InMemory) Create(_ context.Context, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	res.ID = s.nextID
	s.reservations[res.ID] = *res
	return nil
}

func (s *InMemory) FindByID(_ context.Context, resID id.ReservationID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[resID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &res, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]*models.Reservation, 0, len(s.reservations))
	for _, res := range s.reservations {
		if res.Deleted {
			continue
		}
		r := res
		reservations = append(reservations, &r)
	}
	return reservations, nil
}

func (s *InMemory) Update(_ context.Context, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[res.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.reservations[res.ID] = *res
	return nil
}

// FindOverlapping returns non-deleted reservations on the item whose range
// shares a day with rng, skipping excludeHolder's own when non-nil.
func (s *InMemory) FindOverlapping(_ context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reservations []*models.Reservation
	for _, res := range s.reservations {
		if res.Deleted || res.ItemID != itemID {
			continue
		}
		if excludeHolder != nil && res.HolderID == *excludeHolder {
			continue
		}
		if !res.Range().Overlaps(rng) {
			continue
		}
		r := res
		reservations = append(reservations, &r)
	}
	return reservations, nil
}

// FindActiveByItemAndHolder returns the holder's non-deleted reservation on
// the item, or nil if there is none. Expiry is not applied here; the loan
// service evaluates it lazily against the request day.
func (s *InMemory) FindActiveByItemAndHolder(_ context.Context, itemID id.ItemID, holderID id.HolderID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.reservations {
		if res.Deleted || res.ItemID != itemID || res.HolderID != holderID {
			continue
		}
		r := res
		return &r, nil
	}
	return nil, nil
}

// FindByHolderItemAndStart returns the holder's non-deleted reservation for
// the exact item and start day, or nil.
func (s *InMemory) FindByHolderItemAndStart(_ context.Context, holderID id.HolderID, itemID id.ItemID, start time.Time) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.reservations {
		if res.Deleted || res.ItemID != itemID || res.HolderID != holderID {
			continue
		}
		if !interval.SameDay(res.ReservedFrom, start) {
			continue
		}
		r := res
		return &r, nil
	}
	return nil, nil
}

// ListActiveByHolderAndStart returns the holder's non-deleted reservations
// starting on the given day, across all items. Feeds the same-day cap check.
func (s *InMemory) ListActiveByHolderAndStart(_ context.Context, holderID id.HolderID, start time.Time) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reservations []*models.Reservation
	for _, res := range s.reservations {
		if res.Deleted || res.HolderID != holderID {
			continue
		}
		if !interval.SameDay(res.ReservedFrom, start) {
			continue
		}
		r := res
		reservations = append(reservations, &r)
	}
	return reservations, nil
}

// FindActiveByItemAndStart returns any holder's non-deleted reservation on
// the item for the exact start day, or nil. This is the duplicate-slot
// guard, distinct from range overlap.
func (s *InMemory) FindActiveByItemAndStart(_ context.Context, itemID id.ItemID, start time.Time) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.reservations {
		if res.Deleted || res.ItemID != itemID {
			continue
		}
		if !interval.SameDay(res.ReservedFrom, start) {
			continue
		}
		r := res
		return &r, nil
	}
	return nil, nil
}

// CountActiveByItem counts non-deleted reservations referencing the item.
func (s *InMemory) CountActiveByItem(_ context.Context, itemID id.ItemID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, res := range s.reservations {
		if !res.Deleted && res.ItemID == itemID {
			count++
		}
	}
	return count, nil
}
