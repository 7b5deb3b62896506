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
	"time"

	"github.com/go-chi/chi/v5"

	"circulate/internal/allocation"
	catalogmodels "circulate/internal/catalog/models"
	catalogstore "circulate/internal/catalog/store"
	holdermodels "circulate/internal/holder/models"
	holderstore "circulate/internal/holder/store"
	"circulate/internal/identity"
	loanstore "circulate/internal/loan/store"
	"circulate/internal/platform/middleware"
	reservationstore "circulate/internal/reservation/store"
	id "circulate/pkg/domain"
)

type fixture struct {
	router    http.Handler
	validator *identity.Validator
	items     *catalogstore.InMemory
	holders   *holderstore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		items:     catalogstore.NewInMemory(),
		holders:   holderstore.NewInMemory(),
		validator: identity.NewValidator("handler-test-key", "circulate", "circulate-api"),
	}
	runner := allocation.NewInMemoryRunner(allocation.UnitOfWork{
		Items:        f.items,
		Holders:      f.holders,
		Loans:        loanstore.NewInMemory(),
		Reservations: reservationstore.NewInMemory(),
	})
	resolver := allocation.NewResolver(runner)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(resolver, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.RequireAuth(f.validator, logger))
	h.Register(r)
	f.router = r
	return f
}

func (f *fixture) newItem(t *testing.T, title string) id.ItemID {
	t.Helper()
	item, err := catalogmodels.NewItem(title, "Author", "", "", 2000, "", "", time.Now())
	if err != nil {
		t.Fatalf("building item: %v", err)
	}
	if err := f.items.Create(t.Context(), item); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	return item.ID
}

func (f *fixture) newHolder(t *testing.T, name string) (id.HolderID, string) {
	t.Helper()
	holder := &holdermodels.Holder{DisplayName: name}
	if err := f.holders.Create(t.Context(), holder); err != nil {
		t.Fatalf("creating holder: %v", err)
	}
	token, err := f.validator.GenerateToken(holder.ID, name, time.Hour)
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return holder.ID, token
}

func (f *fixture) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestReservationLifecycle(t *testing.T) {
	f := newFixture(t)
	itemID := f.newItem(t, "The Aleph")
	aliceID, aliceToken := f.newHolder(t, "alice")
	bobID, bobToken := f.newHolder(t, "bob")

	from := time.Now().AddDate(0, 1, 0)
	expires := from.AddDate(0, 0, 14)

	rec := f.do(t, http.MethodPost, "/reservations", aliceToken, map[string]any{
		"item_id":       itemID.Int64(),
		"holder_id":     aliceID.Int64(),
		"reserved_from": from.Format("2006-01-02"),
		"expires_at":    expires.Format("2006-01-02"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating reservation, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Reservation struct {
			ID int64 `json:"id"`
		} `json:"reservation"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	t.Run("overlapping claim by another holder is a 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/reservations", bobToken, map[string]any{
			"item_id":       itemID.Int64(),
			"holder_id":     bobID.Int64(),
			"reserved_from": from.AddDate(0, 0, 3).Format("2006-01-02"),
			"expires_at":    expires.Format("2006-01-02"),
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("list shows the live reservation", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/reservations", aliceToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var list struct {
			Total int `json:"total"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
			t.Fatalf("decoding list: %v", err)
		}
		if list.Total != 1 {
			t.Fatalf("expected total 1, got %d", list.Total)
		}
	})

	t.Run("patch moves the expiry", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, fmt.Sprintf("/reservations/%d", resp.Reservation.ID), aliceToken, map[string]any{
			"expires_at": expires.AddDate(0, 0, 7).Format("2006-01-02"),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("delete then delete again", func(t *testing.T) {
		path := fmt.Sprintf("/reservations/%d", resp.Reservation.ID)
		if rec := f.do(t, http.MethodDelete, path, aliceToken, nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec := f.do(t, http.MethodDelete, path, aliceToken, nil); rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 on repeat delete, got %d", rec.Code)
		}
	})
}
