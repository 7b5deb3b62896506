package handler

import (
	"time"

	"circulate/internal/loan/models"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

type createLoanRequest struct {
	ItemID   int64   `json:"item_id"`
	HolderID int64   `json:"holder_id"`
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
}

func (r createLoanRequest) toDomain(requesting id.HolderID) (models.CreateLoanRequest, error) {
	start, err := parseDate(r.Start)
	if err != nil {
		return models.CreateLoanRequest{}, dErrors.New(dErrors.CodeBadRequest, "start must be a date (YYYY-MM-DD)")
	}
	end, err := parseDatePtr(r.End)
	if err != nil {
		return models.CreateLoanRequest{}, dErrors.New(dErrors.CodeBadRequest, "end must be a date (YYYY-MM-DD)")
	}
	return models.CreateLoanRequest{
		ItemID:           id.ItemID(r.ItemID),
		HolderID:         id.HolderID(r.HolderID),
		Start:            start,
		End:              end,
		RequestingHolder: requesting,
	}, nil
}

type updateLoanRequest struct {
	ItemID   *int64  `json:"item_id,omitempty"`
	HolderID *int64  `json:"holder_id,omitempty"`
	Start    *string `json:"start,omitempty"`
	End      *string `json:"end,omitempty"`
}

func (r updateLoanRequest) toDomain() (models.UpdateLoanRequest, error) {
	start, err := parseDatePtr(r.Start)
	if err != nil {
		return models.UpdateLoanRequest{}, dErrors.New(dErrors.CodeBadRequest, "start must be a date (YYYY-MM-DD)")
	}
	end, err := parseDatePtr(r.End)
	if err != nil {
		return models.UpdateLoanRequest{}, dErrors.New(dErrors.CodeBadRequest, "end must be a date (YYYY-MM-DD)")
	}
	req := models.UpdateLoanRequest{Start: start, End: end}
	if r.ItemID != nil {
		itemID := id.ItemID(*r.ItemID)
		req.ItemID = &itemID
	}
	if r.HolderID != nil {
		holderID := id.HolderID(*r.HolderID)
		req.HolderID = &holderID
	}
	return req, nil
}

// parseDate accepts plain dates and full RFC 3339 timestamps; either way the
// engine normalizes to the reference calendar day.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseDatePtr(v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := parseDate(*v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
