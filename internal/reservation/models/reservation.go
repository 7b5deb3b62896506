package models

import (
	"time"

	"circulate/internal/allocation/interval"
	id "circulate/pkg/domain"
)

// Reservation is an advance, non-physical claim on an item for a future date
// range.
//
// Invariants:
//   - ReservedFrom and ExpiresAt are day-granular in the reference zone;
//     ExpiresAt == nil means the claim has no expiry and occupies the item
//     indefinitely
//   - For one item, non-deleted reservations of different holders never
//     overlap, and no two non-deleted reservations share the exact start day
//   - A holder keeps at most two reservations starting the same day, and at
//     most one per item per start day
//   - LoanID is set exactly once the reservation converts into a loan; the
//     reservation record survives conversion (linked, not merged)
//   - Deleted marks logical removal; a reservation backing an active loan may
//     not be deleted
type Reservation struct {
	ID           id.ReservationID `json:"id"`
	ItemID       id.ItemID        `json:"item_id"`
	HolderID     id.HolderID      `json:"holder_id"`
	ReservedFrom time.Time        `json:"reserved_from"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
	LoanID       *id.LoanID       `json:"loan_id,omitempty"`
	Deleted      bool             `json:"deleted"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Range returns the reservation's occupancy range at day granularity.
func (r *Reservation) Range() interval.Range {
	return interval.NewRange(r.ReservedFrom, r.ExpiresAt)
}

// ActiveOn reports whether the reservation can still convert into a loan on
// the given day: it must carry an expiry on or after that day. Expiry is
// evaluated lazily here; there is no background sweep.
func (r *Reservation) ActiveOn(day time.Time) bool {
	return !r.Deleted && r.ExpiresAt != nil && interval.OnOrAfter(*r.ExpiresAt, day)
}

// ExpiredOn reports whether the reservation's expiry has passed as of the
// given day. A reservation without an expiry never expires and keeps blocking
// the item, though it cannot convert (see ActiveOn).
func (r *Reservation) ExpiredOn(day time.Time) bool {
	return r.ExpiresAt != nil && !interval.OnOrAfter(*r.ExpiresAt, day)
}

// Converted reports whether the reservation already backs a loan.
func (r *Reservation) Converted() bool {
	return r.LoanID != nil
}

// CreateReservationRequest is the validated input for placing a reservation.
type CreateReservationRequest struct {
	ItemID           id.ItemID
	HolderID         id.HolderID
	ReservedFrom     time.Time
	ExpiresAt        *time.Time
	RequestingHolder id.HolderID
}

// UpdateReservationRequest patches a reservation. Nil fields are left
// unchanged. Deleted can only transition to true; that is the cancellation
// path.
type UpdateReservationRequest struct {
	ReservedFrom *time.Time
	ExpiresAt    *time.Time
	Deleted      *bool
}

// ChangesDates reports whether the patch touches the reservation's range.
func (r *UpdateReservationRequest) ChangesDates() bool {
	return r.ReservedFrom != nil || r.ExpiresAt != nil
}
