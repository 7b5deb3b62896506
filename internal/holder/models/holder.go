package models

import (
	id "circulate/pkg/domain"
)

// Holder is the catalog's view of an authenticated borrower. Identity and
// credential verification live with the external identity provider; the core
// only needs existence and soft-delete state for loan and reservation checks.
type Holder struct {
	ID          id.HolderID `json:"id"`
	DisplayName string      `json:"display_name"`
	Deleted     bool        `json:"deleted"`
}

// IsActive reports whether the holder may take out loans or reservations.
func (h *Holder) IsActive() bool {
	return !h.Deleted
}
