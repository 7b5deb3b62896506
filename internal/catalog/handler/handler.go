// Package handler exposes catalog item management over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"circulate/internal/catalog/models"
	"circulate/internal/catalog/service"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(service *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the item routes. The search route precedes the ID route so
// chi does not swallow "search" as an item ID.
func (h *Handler) Register(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/{itemID}", h.get)
		r.Patch("/{itemID}", h.update)
		r.Delete("/{itemID}", h.remove)
	})
}

type createItemRequest struct {
	Title             string `json:"title"`
	Author            string `json:"author"`
	AuthorNationality string `json:"author_nationality"`
	Topic             string `json:"topic"`
	PublicationYear   int    `json:"publication_year"`
	Excerpt           string `json:"excerpt"`
	Publisher         string `json:"publisher"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	item, err := h.service.Create(r.Context(), body.Title, body.Author, body.AuthorNationality,
		body.Topic, body.PublicationYear, body.Excerpt, body.Publisher)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "item created",
		"item":    item,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SearchFilter{
		Title:             q.Get("title"),
		Author:            q.Get("author"),
		AuthorNationality: q.Get("author_nationality"),
		Topic:             q.Get("topic"),
	}
	if year := q.Get("publication_year"); year != "" {
		parsed, err := strconv.Atoi(year)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "publication_year must be an integer"))
			return
		}
		filter.PublicationYear = parsed
	}

	items, err := h.service.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}
	item, err := h.service.Get(r.Context(), itemID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}
	var req models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	item, err := h.service.Update(r.Context(), itemID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}
	if err := h.service.Remove(r.Context(), itemID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
