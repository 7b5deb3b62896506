package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"circulate/internal/allocation/interval"
	"circulate/internal/loan/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
	txcontext "circulate/pkg/platform/tx"
)

// Postgres persists loans. Overlap queries encode the same inclusive,
// day-granular predicate as interval.Range.Overlaps; dates are normalized to
// day precision before they reach this store.
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

const loanColumns = `id, item_id, holder_id, start_date, end_date, reservation_id, deleted, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO loans (item_id, holder_id, start_date, end_date, reservation_id, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		loan.ItemID.Int64(), loan.HolderID.Int64(),
		loan.Start, nullTime(loan.End), nullReservationID(loan.ReservationID),
		loan.Deleted, loan.CreatedAt, loan.UpdatedAt,
	).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(s.q(ctx).QueryRowContext(ctx, query, loanID.Int64()))
}

func (s *Postgres) List(ctx context.Context) ([]*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE deleted = FALSE ORDER BY id`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (s *Postgres) Update(ctx context.Context, loan *models.Loan) error {
	query := `
		UPDATE loans
		SET item_id = $2, holder_id = $3, start_date = $4, end_date = $5,
		    reservation_id = $6, deleted = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		loan.ID.Int64(), loan.ItemID.Int64(), loan.HolderID.Int64(),
		loan.Start, nullTime(loan.End), nullReservationID(loan.ReservationID),
		loan.Deleted, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return requireRow(result)
}

// FindOverlapping returns non-deleted loans on the item sharing at least one
// day with rng. A NULL end_date extends the loan indefinitely; a NULL range
// end does the same for the candidate. Loans of excludeHolder are skipped.
func (s *Postgres) FindOverlapping(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*models.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE item_id = $1
		  AND deleted = FALSE
		  AND ($3::timestamptz IS NULL OR start_date <= $3)
		  AND (end_date IS NULL OR end_date >= $2)
		  AND ($4::bigint IS NULL OR holder_id <> $4)
		ORDER BY id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query,
		itemID.Int64(), rng.Start, nullTime(rng.End), nullHolderID(excludeHolder),
	)
	if err != nil {
		return nil, fmt.Errorf("find overlapping loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (s *Postgres) CountActiveByItem(ctx context.Context, itemID id.ItemID) (int, error) {
	query := `SELECT COUNT(*) FROM loans WHERE item_id = $1 AND deleted = FALSE`
	var count int
	if err := s.q(ctx).QueryRowContext(ctx, query, itemID.Int64()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

func scanLoan(row *sql.Row) (*models.Loan, error) {
	var (
		loan  models.Loan
		end   sql.NullTime
		resID sql.NullInt64
	)
	err := row.Scan(
		&loan.ID, &loan.ItemID, &loan.HolderID, &loan.Start, &end,
		&resID, &loan.Deleted, &loan.CreatedAt, &loan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	applyLoanNullables(&loan, end, resID)
	return &loan, nil
}

func collectLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		var (
			loan  models.Loan
			end   sql.NullTime
			resID sql.NullInt64
		)
		if err := rows.Scan(
			&loan.ID, &loan.ItemID, &loan.HolderID, &loan.Start, &end,
			&resID, &loan.Deleted, &loan.CreatedAt, &loan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan loan row: %w", err)
		}
		applyLoanNullables(&loan, end, resID)
		loans = append(loans, &loan)
	}
	return loans, rows.Err()
}

func applyLoanNullables(loan *models.Loan, end sql.NullTime, resID sql.NullInt64) {
	if end.Valid {
		t := end.Time
		loan.End = &t
	}
	if resID.Valid {
		r := id.ReservationID(resID.Int64)
		loan.ReservationID = &r
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

func nullReservationID(resID *id.ReservationID) sql.NullInt64 {
	if resID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: resID.Int64(), Valid: true}
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
