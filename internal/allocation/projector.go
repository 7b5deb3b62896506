package allocation

import (
	"context"

	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

// Projector maintains the derived availability flag on catalog items. The
// flag is a pure function of live bookings: an item is available exactly when
// no non-deleted loan and no non-deleted reservation references it. Every
// mutation that touches an item's bookings recomputes the flag inside the
// same unit of work, so readers never see a stale value after commit.
type Projector struct {
	items        ItemStore
	loans        LoanStore
	reservations ReservationStore
}

func NewProjector(items ItemStore, loans LoanStore, reservations ReservationStore) *Projector {
	return &Projector{items: items, loans: loans, reservations: reservations}
}

// Recompute re-derives and persists the availability flag for one item.
func (p *Projector) Recompute(ctx context.Context, itemID id.ItemID) error {
	loanCount, err := p.loans.CountActiveByItem(ctx, itemID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "counting loans for availability")
	}
	resCount, err := p.reservations.CountActiveByItem(ctx, itemID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "counting reservations for availability")
	}

	available := loanCount == 0 && resCount == 0
	if err := p.items.SetAvailability(ctx, itemID, available); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting availability")
	}
	return nil
}
