// Package handler exposes the loan lifecycle over HTTP. It stays thin: decode,
// delegate to the conflict resolver, encode.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"circulate/internal/allocation"
	"circulate/internal/loan/models"
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

// Register mounts the loan routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{loanID}", h.get)
		r.Patch("/{loanID}", h.update)
		r.Delete("/{loanID}", h.remove)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	req, err := body.toDomain(requestcontext.HolderID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.resolver.PlaceLoan(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	message := "loan created"
	if result.ViaReservation {
		message = "loan created from reservation"
	}
	httputil.WriteJSON(w, http.StatusCreated, createLoanResponse{
		Message:        message,
		Loan:           result.Loan,
		ViaReservation: result.ViaReservation,
	})
}

type createLoanResponse struct {
	Message        string       `json:"message"`
	Loan           *models.Loan `json:"loan"`
	ViaReservation bool         `json:"via_reservation"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	loans, err := h.resolver.ListLoans(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"loans": loans,
		"total": len(loans),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	loanID, err := id.ParseLoanID(chi.URLParam(r, "loanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid loan id"))
		return
	}
	loan, err := h.resolver.GetLoan(r.Context(), loanID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	loanID, err := id.ParseLoanID(chi.URLParam(r, "loanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid loan id"))
		return
	}
	var body updateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	req, err := body.toDomain()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	loan, err := h.resolver.UpdateLoan(r.Context(), loanID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	loanID, err := id.ParseLoanID(chi.URLParam(r, "loanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid loan id"))
		return
	}
	if err := h.resolver.CancelLoan(r.Context(), loanID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "loan deleted"})
}
