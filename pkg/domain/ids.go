// Package domain holds the typed identifiers shared across the service.
//
// Identifiers are integers because the identity collaborator and the catalog
// database hand out sequential integer keys. Wrapping them in distinct types
// keeps an ItemID from silently flowing into a parameter that expects a
// HolderID.
package domain

import "strconv"

type (
	// ItemID identifies a lendable item in the catalog.
	ItemID int64
	// HolderID identifies the person a loan or reservation belongs to.
	HolderID int64
	// LoanID identifies a loan record.
	LoanID int64
	// ReservationID identifies a reservation record.
	ReservationID int64
)

func (id ItemID) Int64() int64 { return int64(id) }
func (id ItemID) IsZero() bool { return id == 0 }
func (id ItemID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id HolderID) Int64() int64 { return int64(id) }
func (id HolderID) IsZero() bool { return id == 0 }
func (id HolderID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id LoanID) Int64() int64 { return int64(id) }
func (id LoanID) IsZero() bool { return id == 0 }
func (id LoanID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id ReservationID) Int64() int64 { return int64(id) }
func (id ReservationID) IsZero() bool { return id == 0 }
func (id ReservationID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseItemID parses a decimal item ID, as it appears in URL parameters.
func ParseItemID(s string) (ItemID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return ItemID(n), err
}

// ParseHolderID parses a decimal holder ID, as it appears in token claims.
func ParseHolderID(s string) (HolderID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return HolderID(n), err
}

// ParseLoanID parses a decimal loan ID, as it appears in URL parameters.
func ParseLoanID(s string) (LoanID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return LoanID(n), err
}

// ParseReservationID parses a decimal reservation ID, as it appears in URL
// parameters.
func ParseReservationID(s string) (ReservationID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return ReservationID(n), err
}
