package models

import (
	"time"

	"circulate/internal/allocation/interval"
	id "circulate/pkg/domain"
)

// Loan is an active checkout of an item for a date range.
//
// Invariants:
//   - Start and End are day-granular in the reference zone; End == nil means
//     the return date is unknown and the loan occupies the item indefinitely
//   - For one item, non-deleted loans of different holders never overlap
//   - ReservationID is set exactly when the loan originated from a
//     reservation (conversion); such loans may not be moved to another item
//     or holder
//   - Deleted marks logical removal and triggers an availability recompute
type Loan struct {
	ID            id.LoanID         `json:"id"`
	ItemID        id.ItemID         `json:"item_id"`
	HolderID      id.HolderID       `json:"holder_id"`
	Start         time.Time         `json:"start"`
	End           *time.Time        `json:"end,omitempty"`
	ReservationID *id.ReservationID `json:"reservation_id,omitempty"`
	Deleted       bool              `json:"deleted"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Range returns the loan's occupancy range at day granularity.
func (l *Loan) Range() interval.Range {
	return interval.NewRange(l.Start, l.End)
}

// Converted reports whether the loan originated from a reservation.
func (l *Loan) Converted() bool {
	return l.ReservationID != nil
}

// CreateLoanRequest is the validated input for placing a loan. The requesting
// holder comes from the identity context and must match HolderID.
type CreateLoanRequest struct {
	ItemID           id.ItemID
	HolderID         id.HolderID
	Start            time.Time
	End              *time.Time
	RequestingHolder id.HolderID
}

// CreateLoanResult distinguishes a plain checkout from a reservation
// conversion; callers rely on the distinction.
type CreateLoanResult struct {
	Loan           *Loan
	ViaReservation bool
}

// UpdateLoanRequest patches a loan. Nil fields are left unchanged. Item and
// holder reassignment is rejected for converted loans.
type UpdateLoanRequest struct {
	ItemID   *id.ItemID
	HolderID *id.HolderID
	Start    *time.Time
	End      *time.Time
}

// ChangesDates reports whether the patch touches the loan's range.
func (r *UpdateLoanRequest) ChangesDates() bool {
	return r.Start != nil || r.End != nil
}

// Reassigns reports whether the patch moves the loan to another item or
// holder.
func (r *UpdateLoanRequest) Reassigns() bool {
	return r.ItemID != nil || r.HolderID != nil
}
