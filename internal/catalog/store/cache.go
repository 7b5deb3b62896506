package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"circulate/internal/catalog/models"
	id "circulate/pkg/domain"
	txcontext "circulate/pkg/platform/tx"
)

// Cached is a read-through Redis decorator over an item store. Reads outside
// a transaction consult Redis first; every write invalidates the key.
// Transactional reads (the conflict resolver's) always bypass the cache so a
// lock-holding request never sees a stale projection.
type Cached struct {
	next   ItemStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// ItemStore is the method set Cached decorates.
type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	GetForUpdate(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	List(ctx context.Context) ([]*models.Item, error)
	Search(ctx context.Context, filter models.SearchFilter) ([]*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	SetAvailability(ctx context.Context, itemID id.ItemID, available bool) error
}

// NewCached wraps next with a Redis read-through cache for FindByID.
func NewCached(next ItemStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(itemID id.ItemID) string {
	return fmt.Sprintf("catalog:item:%d", itemID.Int64())
}

func (c *Cached) FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	if _, inTx := txcontext.From(ctx); inTx {
		return c.next.FindByID(ctx, itemID)
	}

	key := cacheKey(itemID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var item models.Item
		if err := json.Unmarshal(payload, &item); err == nil {
			return &item, nil
		}
		// Corrupt entry; fall through to the store and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down never fails a read.
		c.logger.WarnContext(ctx, "item cache read failed", "item_id", itemID, "error", err)
	}

	item, err := c.next.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(item); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "item cache write failed", "item_id", itemID, "error", err)
		}
	}
	return item, nil
}

func (c *Cached) GetForUpdate(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	return c.next.GetForUpdate(ctx, itemID)
}

func (c *Cached) List(ctx context.Context) ([]*models.Item, error) {
	return c.next.List(ctx)
}

func (c *Cached) Search(ctx context.Context, filter models.SearchFilter) ([]*models.Item, error) {
	return c.next.Search(ctx, filter)
}

func (c *Cached) Create(ctx context.Context, item *models.Item) error {
	return c.next.Create(ctx, item)
}

func (c *Cached) Update(ctx context.Context, item *models.Item) error {
	if err := c.next.Update(ctx, item); err != nil {
		return err
	}
	c.invalidate(ctx, item.ID)
	return nil
}

func (c *Cached) SetAvailability(ctx context.Context, itemID id.ItemID, available bool) error {
	if err := c.next.SetAvailability(ctx, itemID, available); err != nil {
		return err
	}
	c.invalidate(ctx, itemID)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, itemID id.ItemID) {
	if err := c.client.Del(ctx, cacheKey(itemID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "item cache invalidation failed", "item_id", itemID, "error", err)
	}
}
