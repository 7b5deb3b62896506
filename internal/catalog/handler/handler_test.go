package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"circulate/internal/catalog/service"
	"circulate/internal/catalog/store"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(store.NewInMemory())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshalling payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestItemCRUD(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/items", map[string]any{
		"title":            "The Aleph",
		"author":           "J. L. Borges",
		"topic":            "fiction",
		"publication_year": 1949,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating item, got %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Item struct {
			ID        int64 `json:"id"`
			Available bool  `json:"available"`
		} `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !created.Item.Available {
		t.Fatalf("expected new item to be available")
	}
	path := fmt.Sprintf("/items/%d", created.Item.ID)

	t.Run("missing title is a 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/items", map[string]any{"author": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("get returns the item", func(t *testing.T) {
		if rec := doJSON(t, router, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("search matches by title", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/items/search?title=aleph", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var result struct {
			Total int `json:"total"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decoding search: %v", err)
		}
		if result.Total != 1 {
			t.Fatalf("expected one match, got %d", result.Total)
		}
	})

	t.Run("no-op patch is a 409", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, path, map[string]any{"title": "The Aleph"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("real patch is a 200", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, path, map[string]any{"publisher": "Losada"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("delete twice conflicts", func(t *testing.T) {
		if rec := doJSON(t, router, http.MethodDelete, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec := doJSON(t, router, http.MethodDelete, path, nil); rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		if rec := doJSON(t, router, http.MethodGet, "/items/9999", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
