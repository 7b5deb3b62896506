package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"circulate/internal/catalog/models"
	"circulate/internal/catalog/store"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

type CatalogServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	ctx     context.Context
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store)
	s.ctx = context.Background()
}

func (s *CatalogServiceSuite) create(title string) *models.Item {
	item, err := s.service.Create(s.ctx, title, "J. L. Borges", "argentina", "fiction", 1949, "", "Losada")
	s.Require().NoError(err)
	return item
}

func (s *CatalogServiceSuite) TestCreate() {
	s.Run("valid item starts available", func() {
		item := s.create("The Aleph")
		s.NotZero(item.ID)
		s.True(item.Available)
		s.False(item.Deleted)
	})

	s.Run("empty title fails validation", func() {
		_, err := s.service.Create(s.ctx, "  ", "Author", "", "", 0, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty author fails validation", func() {
		_, err := s.service.Create(s.ctx, "Title", "", "", "", 0, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *CatalogServiceSuite) TestGet() {
	item := s.create("The Aleph")

	found, err := s.service.Get(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.Title, found.Title)

	_, err = s.service.Get(s.ctx, id.ItemID(9999))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CatalogServiceSuite) TestListAndSearch() {
	s.create("The Aleph")
	s.create("Ficciones")
	hopscotch := s.create("Hopscotch")
	s.Require().NoError(s.service.Remove(s.ctx, hopscotch.ID))

	s.Run("list excludes deleted and reports the total", func() {
		items, total, err := s.service.List(s.ctx)
		s.Require().NoError(err)
		s.Len(items, 2)
		s.Equal(2, total)
	})

	s.Run("search filters by title substring", func() {
		items, err := s.service.Search(s.ctx, models.SearchFilter{Title: "aleph"})
		s.Require().NoError(err)
		s.Len(items, 1)
		s.Equal("The Aleph", items[0].Title)
	})

	s.Run("search with no criteria returns everything live", func() {
		items, err := s.service.Search(s.ctx, models.SearchFilter{})
		s.Require().NoError(err)
		s.Len(items, 2)
	})
}

func (s *CatalogServiceSuite) TestUpdate() {
	item := s.create("The Aleph")

	s.Run("field change is persisted", func() {
		topic := "short stories"
		updated, err := s.service.Update(s.ctx, item.ID, models.UpdateItemRequest{Topic: &topic})
		s.Require().NoError(err)
		s.Equal("short stories", updated.Topic)
	})

	s.Run("identical patch is rejected", func() {
		topic := "short stories"
		_, err := s.service.Update(s.ctx, item.ID, models.UpdateItemRequest{Topic: &topic})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown item is not found", func() {
		title := "x"
		_, err := s.service.Update(s.ctx, id.ItemID(9999), models.UpdateItemRequest{Title: &title})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CatalogServiceSuite) TestRemove() {
	item := s.create("The Aleph")

	s.Require().NoError(s.service.Remove(s.ctx, item.ID))

	s.Run("second removal conflicts", func() {
		err := s.service.Remove(s.ctx, item.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("updating a deleted item is not found", func() {
		title := "x"
		_, err := s.service.Update(s.ctx, item.ID, models.UpdateItemRequest{Title: &title})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
