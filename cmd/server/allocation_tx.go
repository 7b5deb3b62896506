package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"circulate/internal/allocation"
	holderstore "circulate/internal/holder/store"
	loanstore "circulate/internal/loan/store"
	reservationstore "circulate/internal/reservation/store"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/sentinel"
	txcontext "circulate/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// allocationPostgresTx runs each unit of work in one database transaction.
// The item row lock taken by GetForUpdate inside fn is held to commit, which
// is the whole concurrency story: two requests for the same item serialize,
// requests for different items proceed in parallel.
type allocationPostgresTx struct {
	db          *sql.DB
	items       allocation.ItemStore
	lockTimeout time.Duration
}

// newAllocationPostgresTx builds the runner. items is passed in rather than
// constructed here so the cache-wrapped store (when Redis is configured)
// sees every availability write and can invalidate.
func newAllocationPostgresTx(db *sql.DB, items allocation.ItemStore, lockTimeout time.Duration) *allocationPostgresTx {
	return &allocationPostgresTx{db: db, items: items, lockTimeout: lockTimeout}
}

func (t *allocationPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, uow allocation.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Bound the wait on the item row lock so a contended item surfaces as a
	// retryable conflict instead of hanging the request.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())); err != nil {
		return err
	}

	txCtx := txcontext.WithTx(ctx, tx)
	uow := allocation.UnitOfWork{
		Items:        t.items,
		Holders:      holderstore.NewPostgres(t.db),
		Loans:        loanstore.NewPostgres(t.db),
		Reservations: reservationstore.NewPostgres(t.db),
	}

	if err := fn(txCtx, uow); err != nil {
		return translatePgError(err)
	}
	if err := tx.Commit(); err != nil {
		return translatePgError(err)
	}
	return nil
}

// translatePgError maps Postgres concurrency failures onto the domain's
// retryable taxonomy. 55P03 is lock_not_available (our bounded lock wait
// expired), 40001 is serialization_failure.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return fmt.Errorf("%w: %w", sentinel.ErrLockTimeout, err)
		case "40001":
			return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update on the same item, retry the request")
		}
	}
	return err
}
