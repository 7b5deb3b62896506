package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"circulate/internal/holder/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
	txcontext "circulate/pkg/platform/tx"
)

// Postgres reads holder records mirrored from the identity provider.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, holder *models.Holder) error {
	query := `
		INSERT INTO holders (display_name, deleted)
		VALUES ($1, $2)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query, holder.DisplayName, holder.Deleted).Scan(&holder.ID)
	if err != nil {
		return fmt.Errorf("create holder: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, holderID id.HolderID) (*models.Holder, error) {
	query := `SELECT id, display_name, deleted FROM holders WHERE id = $1`
	var holder models.Holder
	err := s.q(ctx).QueryRowContext(ctx, query, holderID.Int64()).
		Scan(&holder.ID, &holder.DisplayName, &holder.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find holder: %w", err)
	}
	return &holder, nil
}
