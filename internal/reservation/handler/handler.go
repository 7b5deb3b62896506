// Package handler exposes the reservation lifecycle over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"circulate/internal/allocation"
	"circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/httputil"
	"circulate/pkg/requestcontext"
)

type Handler struct {
	resolver *allocation.Resolver
	logger   *slog.Logger
}

func New(resolver *allocation.Resolver, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// Register mounts the reservation routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{reservationID}", h.get)
		r.Patch("/{reservationID}", h.update)
		r.Delete("/{reservationID}", h.remove)
	})
}

type createReservationRequest struct {
	ItemID       int64   `json:"item_id"`
	HolderID     int64   `json:"holder_id"`
	ReservedFrom string  `json:"reserved_from"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
}

type updateReservationRequest struct {
	ReservedFrom *string `json:"reserved_from,omitempty"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
	Deleted      *bool   `json:"deleted,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	from, err := parseDate(body.ReservedFrom)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reserved_from must be a date (YYYY-MM-DD)"))
		return
	}
	expires, err := parseDatePtr(body.ExpiresAt)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expires_at must be a date (YYYY-MM-DD)"))
		return
	}

	res, err := h.resolver.PlaceReservation(r.Context(), models.CreateReservationRequest{
		ItemID:           id.ItemID(body.ItemID),
		HolderID:         id.HolderID(body.HolderID),
		ReservedFrom:     from,
		ExpiresAt:        expires,
		RequestingHolder: requestcontext.HolderID(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":     "reservation created",
		"reservation": res,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.resolver.ListReservations(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"reservations": reservations,
		"total":        len(reservations),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid reservation id"))
		return
	}
	res, err := h.resolver.GetReservation(r.Context(), resID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid reservation id"))
		return
	}
	var body updateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	from, err := parseDatePtr(body.ReservedFrom)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reserved_from must be a date (YYYY-MM-DD)"))
		return
	}
	expires, err := parseDatePtr(body.ExpiresAt)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expires_at must be a date (YYYY-MM-DD)"))
		return
	}

	res, err := h.resolver.UpdateReservation(r.Context(), resID, models.UpdateReservationRequest{
		ReservedFrom: from,
		ExpiresAt:    expires,
		Deleted:      body.Deleted,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid reservation id"))
		return
	}
	if err := h.resolver.CancelReservation(r.Context(), resID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "reservation deleted"})
}

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
