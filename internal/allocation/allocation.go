// Package allocation hosts the conflict-resolution engine: the overlap query
// service, the availability projector, and the resolver that sequences every
// lifecycle operation inside one item-scoped unit of work.
package allocation

import (
	"context"
	"sync"
	"time"

	"circulate/internal/allocation/interval"
	catalogmodels "circulate/internal/catalog/models"
	holdermodels "circulate/internal/holder/models"
	loanmodels "circulate/internal/loan/models"
	reservationmodels "circulate/internal/reservation/models"
	id "circulate/pkg/domain"
)

// ItemStore is the catalog surface the engine needs. GetForUpdate must hold
// the item's row lock until the unit of work commits.
type ItemStore interface {
	FindByID(ctx context.Context, itemID id.ItemID) (*catalogmodels.Item, error)
	GetForUpdate(ctx context.Context, itemID id.ItemID) (*catalogmodels.Item, error)
	SetAvailability(ctx context.Context, itemID id.ItemID, available bool) error
}

// HolderStore resolves holder existence for allocation checks.
type HolderStore interface {
	FindByID(ctx context.Context, holderID id.HolderID) (*holdermodels.Holder, error)
}

// LoanStore is the loan repository surface used inside a unit of work.
type LoanStore interface {
	Create(ctx context.Context, loan *loanmodels.Loan) error
	FindByID(ctx context.Context, loanID id.LoanID) (*loanmodels.Loan, error)
	List(ctx context.Context) ([]*loanmodels.Loan, error)
	Update(ctx context.Context, loan *loanmodels.Loan) error
	FindOverlapping(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*loanmodels.Loan, error)
	CountActiveByItem(ctx context.Context, itemID id.ItemID) (int, error)
}

// ReservationStore is the reservation repository surface used inside a unit
// of work.
type ReservationStore interface {
	Create(ctx context.Context, res *reservationmodels.Reservation) error
	FindByID(ctx context.Context, resID id.ReservationID) (*reservationmodels.Reservation, error)
	List(ctx context.Context) ([]*reservationmodels.Reservation, error)
	Update(ctx context.Context, res *reservationmodels.Reservation) error
	FindOverlapping(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*reservationmodels.Reservation, error)
	FindActiveByItemAndHolder(ctx context.Context, itemID id.ItemID, holderID id.HolderID) (*reservationmodels.Reservation, error)
	FindByHolderItemAndStart(ctx context.Context, holderID id.HolderID, itemID id.ItemID, start time.Time) (*reservationmodels.Reservation, error)
	ListActiveByHolderAndStart(ctx context.Context, holderID id.HolderID, start time.Time) ([]*reservationmodels.Reservation, error)
	FindActiveByItemAndStart(ctx context.Context, itemID id.ItemID, start time.Time) (*reservationmodels.Reservation, error)
	CountActiveByItem(ctx context.Context, itemID id.ItemID) (int, error)
}

// UnitOfWork bundles the stores participating in one transaction. Every
// overlap check and write of a lifecycle operation runs against the same
// snapshot, so two concurrent requests for one item cannot both observe "no
// conflict" and both commit.
type UnitOfWork struct {
	Items        ItemStore
	Holders      HolderStore
	Loans        LoanStore
	Reservations ReservationStore
}

// TxRunner executes fn inside one atomic unit of work. The context handed to
// fn carries the transaction so every store call joins it. Implementations
// must roll back when fn returns an error and bound any lock wait; an expired
// wait surfaces as sentinel.ErrLockTimeout.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// InMemoryRunner serializes units of work over in-memory stores. Unit tests
// and the dev profile use it; the single mutex stands in for the per-item
// row lock (coarser, but correct).
type InMemoryRunner struct {
	mu  sync.Mutex
	uow UnitOfWork
}

func NewInMemoryRunner(uow UnitOfWork) *InMemoryRunner {
	return &InMemoryRunner{uow: uow}
}

func (r *InMemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, r.uow)
}
