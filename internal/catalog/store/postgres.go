package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"circulate/internal/catalog/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
	txcontext "circulate/pkg/platform/tx"
)

// Postgres persists catalog items. When the context carries a transaction
// (opened by the conflict resolver) all queries join it; otherwise they run
// on the pool.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const itemColumns = `id, title, author, author_nationality, topic, publication_year, excerpt, publisher, available, deleted, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (title, author, author_nationality, topic, publication_year, excerpt, publisher, available, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		item.Title, item.Author, item.AuthorNationality, item.Topic,
		item.PublicationYear, item.Excerpt, item.Publisher,
		item.Available, item.Deleted, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return s.scanItem(s.q(ctx).QueryRowContext(ctx, query, itemID.Int64()))
}

// GetForUpdate loads the item row under FOR UPDATE, serializing concurrent
// allocation attempts on the same item. The surrounding transaction bounds
// the wait with lock_timeout; an expired wait surfaces as ErrLockTimeout.
func (s *Postgres) GetForUpdate(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 FOR UPDATE`
	item, err := s.scanItem(s.q(ctx).QueryRowContext(ctx, query, itemID.Int64()))
	if err != nil {
		if isLockTimeout(err) {
			return nil, sentinel.ErrLockTimeout
		}
		return nil, err
	}
	return item, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted = FALSE ORDER BY id`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return s.collectItems(rows)
}

// Search applies the explicit typed filters; empty fields fall away in SQL
// rather than through dynamic query assembly.
func (s *Postgres) Search(ctx context.Context, filter models.SearchFilter) ([]*models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE deleted = FALSE
		  AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR author ILIKE '%' || $2 || '%')
		  AND ($3 = '' OR author_nationality ILIKE '%' || $3 || '%')
		  AND ($4 = '' OR topic ILIKE '%' || $4 || '%')
		  AND ($5 = 0 OR publication_year = $5)
		ORDER BY id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query,
		strings.TrimSpace(filter.Title), strings.TrimSpace(filter.Author),
		strings.TrimSpace(filter.AuthorNationality), strings.TrimSpace(filter.Topic),
		filter.PublicationYear,
	)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()
	return s.collectItems(rows)
}

func (s *Postgres) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET title = $2, author = $3, author_nationality = $4, topic = $5,
		    publication_year = $6, excerpt = $7, publisher = $8,
		    available = $9, deleted = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		item.ID.Int64(), item.Title, item.Author, item.AuthorNationality, item.Topic,
		item.PublicationYear, item.Excerpt, item.Publisher,
		item.Available, item.Deleted, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return requireRow(result)
}

func (s *Postgres) SetAvailability(ctx context.Context, itemID id.ItemID, available bool) error {
	query := `UPDATE items SET available = $2, updated_at = NOW() WHERE id = $1`
	result, err := s.q(ctx).ExecContext(ctx, query, itemID.Int64(), available)
	if err != nil {
		return fmt.Errorf("set item availability: %w", err)
	}
	return requireRow(result)
}

func (s *Postgres) scanItem(row *sql.Row) (*models.Item, error) {
	var item models.Item
	err := row.Scan(
		&item.ID, &item.Title, &item.Author, &item.AuthorNationality, &item.Topic,
		&item.PublicationYear, &item.Excerpt, &item.Publisher,
		&item.Available, &item.Deleted, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &item, nil
}

func (s *Postgres) collectItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Author, &item.AuthorNationality, &item.Topic,
			&item.PublicationYear, &item.Excerpt, &item.Publisher,
			&item.Available, &item.Deleted, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// 55P03 = lock_not_available, raised when lock_timeout expires.
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}
