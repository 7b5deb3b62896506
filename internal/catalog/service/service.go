// Package service implements catalog item management. Allocation state is
// out of its hands: availability belongs to the conflict resolver's
// projector, and this service never writes it.
package service

import (
	"context"
	"errors"
	"log/slog"

	"circulate/internal/catalog/models"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/sentinel"
	"circulate/pkg/requestcontext"
)

type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	List(ctx context.Context) ([]*models.Item, error)
	Search(ctx context.Context, filter models.SearchFilter) ([]*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
}

// Service manages the bibliographic side of the catalog.
type Service struct {
	items  ItemStore
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service.
func New(items ItemStore, opts ...Option) *Service {
	s := &Service{items: items}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new item. New items start available.
func (s *Service) Create(ctx context.Context, title, author, nationality, topic string, year int, excerpt, publisher string) (*models.Item, error) {
	item, err := models.NewItem(title, author, nationality, topic, year, excerpt, publisher, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting item")
	}

	s.log(ctx, "item created", "item_id", item.ID, "title", item.Title)
	return item, nil
}

// Get returns one item, deleted or not.
func (s *Service) Get(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading item")
	}
	return item, nil
}

// List returns all non-deleted items and their total count.
func (s *Service) List(ctx context.Context) ([]*models.Item, int, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "listing items")
	}
	return items, len(items), nil
}

// Search returns non-deleted items matching the explicit filter fields.
func (s *Service) Search(ctx context.Context, filter models.SearchFilter) ([]*models.Item, error) {
	items, err := s.items.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "searching items")
	}
	return items, nil
}

// Update patches an item's bibliographic fields. A patch that changes nothing
// is rejected rather than silently re-saved.
func (s *Service) Update(ctx context.Context, itemID id.ItemID, req models.UpdateItemRequest) (*models.Item, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	if req.IsNoop(item) {
		return nil, dErrors.New(dErrors.CodeConflict, "update changes nothing")
	}

	req.Apply(item, requestcontext.Now(ctx))
	if err := s.items.Update(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting item update")
	}

	s.log(ctx, "item updated", "item_id", item.ID)
	return item, nil
}

// Remove soft-deletes an item. Removing an already-deleted item is a
// conflict.
func (s *Service) Remove(ctx context.Context, itemID id.ItemID) error {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Deleted {
		return dErrors.New(dErrors.CodeConflict, "item is already deleted")
	}

	item.Deleted = true
	item.UpdatedAt = requestcontext.Now(ctx)
	if err := s.items.Update(ctx, item); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting item removal")
	}

	s.log(ctx, "item removed", "item_id", item.ID)
	return nil
}

func (s *Service) log(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}
