package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"circulate/internal/holder/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

type HolderStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *HolderStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestHolderStoreSuite(t *testing.T) {
	suite.Run(t, new(HolderStoreSuite))
}

// TestCreationAndLookups verifies ID assignment, including seeding with
// identity-provider-assigned IDs.
func (s *HolderStoreSuite) TestCreationAndLookups() {
	s.Run("assigns IDs when none given", func() {
		holder := &models.Holder{DisplayName: "Beatriz Viterbo"}
		s.Require().NoError(s.store.Create(s.ctx, holder))
		s.Equal(id.HolderID(1), holder.ID)
	})

	s.Run("keeps provided IDs and continues after them", func() {
		seeded := &models.Holder{ID: 40, DisplayName: "Carlos Argentino"}
		s.Require().NoError(s.store.Create(s.ctx, seeded))
		s.Equal(id.HolderID(40), seeded.ID)

		next := &models.Holder{DisplayName: "Emma Zunz"}
		s.Require().NoError(s.store.Create(s.ctx, next))
		s.Equal(id.HolderID(41), next.ID)
	})

	s.Run("finds holder by ID", func() {
		found, err := s.store.FindByID(s.ctx, 40)
		s.Require().NoError(err)
		s.Equal("Carlos Argentino", found.DisplayName)
		s.True(found.IsActive())
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("soft-deleted holders are still readable", func() {
		holder := &models.Holder{DisplayName: "Funes", Deleted: true}
		s.Require().NoError(s.store.Create(s.ctx, holder))

		found, err := s.store.FindByID(s.ctx, holder.ID)
		s.Require().NoError(err)
		s.False(found.IsActive())
	})
}
