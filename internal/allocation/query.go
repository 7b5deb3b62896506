package allocation

import (
	"context"
	"time"

	"circulate/internal/allocation/interval"
	loanmodels "circulate/internal/loan/models"
	reservationmodels "circulate/internal/reservation/models"
	id "circulate/pkg/domain"
)

// Query answers overlap questions for a candidate interval. Loans conflict on
// raw date overlap; reservations additionally have to be live, since a
// reservation whose expiry has already passed no longer blocks anything even
// though the row is still present.
type Query struct {
	loans        LoanStore
	reservations ReservationStore
}

func NewQuery(loans LoanStore, reservations ReservationStore) *Query {
	return &Query{loans: loans, reservations: reservations}
}

// FindOverlappingLoans returns every non-deleted loan on the item whose
// occupancy interval touches rng. A nil excludeHolder considers all holders;
// otherwise that holder's own loans are skipped so a holder can adjust their
// own booking.
func (q *Query) FindOverlappingLoans(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*loanmodels.Loan, error) {
	return q.loans.FindOverlapping(ctx, itemID, rng, excludeHolder)
}

// FindOverlappingReservations returns reservations on the item that overlap
// rng and are still live as of today. Expired reservations are filtered here
// rather than reaped by a background job.
func (q *Query) FindOverlappingReservations(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID, today time.Time) ([]*reservationmodels.Reservation, error) {
	found, err := q.reservations.FindOverlapping(ctx, itemID, rng, excludeHolder)
	if err != nil {
		return nil, err
	}
	live := make([]*reservationmodels.Reservation, 0, len(found))
	for _, res := range found {
		if !res.ExpiredOn(today) {
			live = append(live, res)
		}
	}
	return live, nil
}
