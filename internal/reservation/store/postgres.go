package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"circulate/internal/allocation/interval"
	"circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
	txcontext "circulate/pkg/platform/tx"
)

// Postgres persists reservations. Overlap and same-day queries encode the
// same day-granular semantics as the in-memory store; dates are normalized
// before they reach this layer.
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

const reservationColumns = `id, item_id, holder_id, reserved_from, expires_at, loan_id, deleted, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, res *models.Reservation) error {
	query := `
		INSERT INTO reservations (item_id, holder_id, reserved_from, expires_at, loan_id, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		res.ItemID.Int64(), res.HolderID.Int64(),
		res.ReservedFrom, nullTime(res.ExpiresAt), nullLoanID(res.LoanID),
		res.Deleted, res.CreatedAt, res.UpdatedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(s.q(ctx).QueryRowContext(ctx, query, resID.Int64()))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, sentinel.ErrNotFound
	}
	return res, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE deleted = FALSE ORDER BY id`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *Postgres) Update(ctx context.Context, res *models.Reservation) error {
	query := `
		UPDATE reservations
		SET item_id = $2, holder_id = $3, reserved_from = $4, expires_at = $5,
		    loan_id = $6, deleted = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		res.ID.Int64(), res.ItemID.Int64(), res.HolderID.Int64(),
		res.ReservedFrom, nullTime(res.ExpiresAt), nullLoanID(res.LoanID),
		res.Deleted, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return requireRow(result)
}

// FindOverlapping returns non-deleted reservations on the item sharing at
// least one day with rng, skipping excludeHolder's own when non-nil.
func (s *Postgres) FindOverlapping(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE item_id = $1
		  AND deleted = FALSE
		  AND ($3::timestamptz IS NULL OR reserved_from <= $3)
		  AND (expires_at IS NULL OR expires_at >= $2)
		  AND ($4::bigint IS NULL OR holder_id <> $4)
		ORDER BY id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query,
		itemID.Int64(), rng.Start, nullTime(rng.End), nullHolderID(excludeHolder),
	)
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservations: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// FindActiveByItemAndHolder returns the holder's non-deleted reservation on
// the item, or nil. Expiry is evaluated by the caller against "today".
func (s *Postgres) FindActiveByItemAndHolder(ctx context.Context, itemID id.ItemID, holderID id.HolderID) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE item_id = $1 AND holder_id = $2 AND deleted = FALSE
		ORDER BY id
		LIMIT 1
	`
	return scanReservation(s.q(ctx).QueryRowContext(ctx, query, itemID.Int64(), holderID.Int64()))
}

// FindByHolderItemAndStart returns the holder's non-deleted reservation for
// the exact item and start day, or nil.
func (s *Postgres) FindByHolderItemAndStart(ctx context.Context, holderID id.HolderID, itemID id.ItemID, start time.Time) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE holder_id = $1 AND item_id = $2 AND reserved_from = $3 AND deleted = FALSE
		LIMIT 1
	`
	return scanReservation(s.q(ctx).QueryRowContext(ctx, query, holderID.Int64(), itemID.Int64(), start))
}

// ListActiveByHolderAndStart returns the holder's non-deleted reservations
// starting on the given day, across all items.
func (s *Postgres) ListActiveByHolderAndStart(ctx context.Context, holderID id.HolderID, start time.Time) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE holder_id = $1 AND reserved_from = $2 AND deleted = FALSE
		ORDER BY id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, holderID.Int64(), start)
	if err != nil {
		return nil, fmt.Errorf("list reservations by holder and start: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// FindActiveByItemAndStart returns any holder's non-deleted reservation on
// the item for the exact start day, or nil.
func (s *Postgres) FindActiveByItemAndStart(ctx context.Context, itemID id.ItemID, start time.Time) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE item_id = $1 AND reserved_from = $2 AND deleted = FALSE
		LIMIT 1
	`
	return scanReservation(s.q(ctx).QueryRowContext(ctx, query, itemID.Int64(), start))
}

func (s *Postgres) CountActiveByItem(ctx context.Context, itemID id.ItemID) (int, error) {
	query := `SELECT COUNT(*) FROM reservations WHERE item_id = $1 AND deleted = FALSE`
	var count int
	if err := s.q(ctx).QueryRowContext(ctx, query, itemID.Int64()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return count, nil
}

// scanReservation returns (nil, nil) on no rows; FindByID wraps that back
// into sentinel.ErrNotFound.
func scanReservation(row *sql.Row) (*models.Reservation, error) {
	var (
		res    models.Reservation
		expiry sql.NullTime
		loanID sql.NullInt64
	)
	err := row.Scan(
		&res.ID, &res.ItemID, &res.HolderID, &res.ReservedFrom, &expiry,
		&loanID, &res.Deleted, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	applyReservationNullables(&res, expiry, loanID)
	return &res, nil
}

func collectReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	for rows.Next() {
		var (
			res    models.Reservation
			expiry sql.NullTime
			loanID sql.NullInt64
		)
		if err := rows.Scan(
			&res.ID, &res.ItemID, &res.HolderID, &res.ReservedFrom, &expiry,
			&loanID, &res.Deleted, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		applyReservationNullables(&res, expiry, loanID)
		reservations = append(reservations, &res)
	}
	return reservations, rows.Err()
}

func applyReservationNullables(res *models.Reservation, expiry sql.NullTime, loanID sql.NullInt64) {
	if expiry.Valid {
		t := expiry.Time
		res.ExpiresAt = &t
	}
	if loanID.Valid {
		l := id.LoanID(loanID.Int64)
		res.LoanID = &l
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullHolderID(holderID *id.HolderID) sql.NullInt64 {
	if holderID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: holderID.Int64(), Valid: true}
}

func nullLoanID(loanID *id.LoanID) sql.NullInt64 {
	if loanID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: loanID.Int64(), Valid: true}
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
