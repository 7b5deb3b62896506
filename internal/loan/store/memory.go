package store

import (
	"context"
	"sync"

	"circulate/internal/allocation/interval"
	"circulate/internal/loan/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

// InMemory keeps loans in a map. Unit tests use it in place of Postgres; the
// overlap filtering applies the same day-granular predicate the SQL store
// encodes in its WHERE clause.
type InMemory struct {
	mu     sync.RWMutex
	nextID id.LoanID
	loans  map[id.LoanID]models.Loan
}

func NewInMemory() *InMemory {
	return &InMemory{loans: make(map[id.LoanID]models.Loan)}
}

func (s *InMemory) Create(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	loan.ID = s.nextID
	s.loans[loan.ID] = *loan
	return nil
}

func (s *InMemory) FindByID(_ context.Context, loanID id.LoanID) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &loan, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make([]*models.Loan, 0, len(s.loans))
	for _, loan := range s.loans {
		if loan.Deleted {
			continue
		}
		l := loan
		loans = append(loans, &l)
	}
	return loans, nil
}

func (s *InMemory) Update(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[loan.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.loans[loan.ID] = *loan
	return nil
}

// FindOverlapping returns non-deleted loans on the item whose range shares a
// day with rng. Loans of excludeHolder are skipped when it is non-nil:
// same-holder extensions are not conflicts.
func (s *InMemory) FindOverlapping(_ context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loans []*models.Loan
	for _, loan := range s.loans {
		if loan.Deleted || loan.ItemID != itemID {
			continue
		}
		if excludeHolder != nil && loan.HolderID == *excludeHolder {
			continue
		}
		if !loan.Range().Overlaps(rng) {
			continue
		}
		l := loan
		loans = append(loans, &l)
	}
	return loans, nil
}

// CountActiveByItem counts non-deleted loans referencing the item; the
// availability projector derives the item flag from it.
func (s *InMemory) CountActiveByItem(_ context.Context, itemID id.ItemID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, loan := range s.loans {
		if !loan.Deleted && loan.ItemID == itemID {
			count++
		}
	}
	return count, nil
}
