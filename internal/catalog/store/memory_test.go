package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"circulate/internal/catalog/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

type ItemStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ItemStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestItemStoreSuite(t *testing.T) {
	suite.Run(t, new(ItemStoreSuite))
}

func (s *ItemStoreSuite) newItem(title, author string, year int) *models.Item {
	item, err := models.NewItem(title, author, "argentina", "fiction", year, "", "Losada", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, item))
	return item
}

// TestCreationAndLookups verifies ID assignment and both read paths.
func (s *ItemStoreSuite) TestCreationAndLookups() {
	s.Run("assigns sequential IDs on create", func() {
		first := s.newItem("Ficciones", "J. L. Borges", 1944)
		second := s.newItem("El Aleph", "J. L. Borges", 1949)

		s.Equal(id.ItemID(1), first.ID)
		s.Equal(id.ItemID(2), second.ID)
	})

	s.Run("finds item by ID", func() {
		item := s.newItem("Rayuela", "J. Cortázar", 1963)

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("Rayuela", found.Title)
		s.True(found.Available)
	})

	s.Run("GetForUpdate reads the same row", func() {
		item := s.newItem("Bestiario", "J. Cortázar", 1951)

		found, err := s.store.GetForUpdate(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal(item.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("FindByID still returns soft-deleted items", func() {
		item := s.newItem("Sur", "V. Ocampo", 1931)
		item.Deleted = true
		s.Require().NoError(s.store.Update(s.ctx, item))

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.True(found.Deleted)
	})
}

// TestList verifies soft-deleted items are excluded from listings.
func (s *ItemStoreSuite) TestList() {
	live := s.newItem("Ficciones", "J. L. Borges", 1944)
	gone := s.newItem("El Aleph", "J. L. Borges", 1949)
	gone.Deleted = true
	s.Require().NoError(s.store.Update(s.ctx, gone))

	items, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(live.ID, items[0].ID)
}

// TestSearch verifies the filter semantics: case-insensitive substring
// matching on text fields, exact match on publication year.
func (s *ItemStoreSuite) TestSearch() {
	s.newItem("Ficciones", "J. L. Borges", 1944)
	s.newItem("El Aleph", "J. L. Borges", 1949)
	s.newItem("Rayuela", "J. Cortázar", 1963)

	s.Run("matches title substrings case-insensitively", func() {
		items, err := s.store.Search(s.ctx, models.SearchFilter{Title: "aleph"})
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal("El Aleph", items[0].Title)
	})

	s.Run("combines author and year filters", func() {
		items, err := s.store.Search(s.ctx, models.SearchFilter{Author: "borges", PublicationYear: 1944})
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal("Ficciones", items[0].Title)
	})

	s.Run("empty filter returns all live items", func() {
		items, err := s.store.Search(s.ctx, models.SearchFilter{})
		s.Require().NoError(err)
		s.Len(items, 3)
	})

	s.Run("excludes soft-deleted items", func() {
		gone := s.newItem("Adán Buenosayres", "L. Marechal", 1948)
		gone.Deleted = true
		s.Require().NoError(s.store.Update(s.ctx, gone))

		items, err := s.store.Search(s.ctx, models.SearchFilter{Title: "buenosayres"})
		s.Require().NoError(err)
		s.Empty(items)
	})
}

// TestUpdates verifies persistence and the NotFound contract.
func (s *ItemStoreSuite) TestUpdates() {
	s.Run("persists field changes", func() {
		item := s.newItem("Ficciones", "J. L. Borges", 1944)
		item.Publisher = "Emecé"
		s.Require().NoError(s.store.Update(s.ctx, item))

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("Emecé", found.Publisher)
	})

	s.Run("returns ErrNotFound for non-existent item", func() {
		err := s.store.Update(s.ctx, &models.Item{ID: 999})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestSetAvailability verifies the projector's write path flips only the
// availability flag.
func (s *ItemStoreSuite) TestSetAvailability() {
	item := s.newItem("Ficciones", "J. L. Borges", 1944)

	s.Require().NoError(s.store.SetAvailability(s.ctx, item.ID, false))
	found, err := s.store.FindByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.False(found.Available)
	s.Equal("Ficciones", found.Title)

	s.Require().NoError(s.store.SetAvailability(s.ctx, item.ID, true))
	found, err = s.store.FindByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.True(found.Available)

	s.Require().ErrorIs(s.store.SetAvailability(s.ctx, 999, false), sentinel.ErrNotFound)
}
