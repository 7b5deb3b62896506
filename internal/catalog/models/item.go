package models

import (
	"strings"
	"time"

	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

// Item is a lendable unit in the catalog.
//
// Invariants:
//   - Title and Author are non-empty
//   - Available is a derived projection: true iff no non-deleted loan or
//     reservation occupies the item. Only the conflict resolver's
//     availability projector writes it; it is never settable through the API.
//   - Deleted marks logical removal; rows are never physically deleted
type Item struct {
	ID                id.ItemID `json:"id"`
	Title             string    `json:"title"`
	Author            string    `json:"author"`
	AuthorNationality string    `json:"author_nationality"`
	Topic             string    `json:"topic"`
	PublicationYear   int       `json:"publication_year"`
	Excerpt           string    `json:"excerpt"`
	Publisher         string    `json:"publisher"`
	Available         bool      `json:"available"`
	Deleted           bool      `json:"deleted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const maxExcerptLen = 1000

// NewItem validates invariants and builds a catalog item. New items start
// available; the projection only flips once an allocation lands.
func NewItem(title, author, nationality, topic string, year int, excerpt, publisher string, now time.Time) (*Item, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item title cannot be empty")
	}
	if author == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item author cannot be empty")
	}
	if len(excerpt) > maxExcerptLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item excerpt must be 1000 characters or less")
	}
	return &Item{
		Title:             title,
		Author:            author,
		AuthorNationality: nationality,
		Topic:             topic,
		PublicationYear:   year,
		Excerpt:           excerpt,
		Publisher:         publisher,
		Available:         true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// UpdateItemRequest carries the mutable bibliographic fields of an item.
// Nil means "leave unchanged". Availability is absent on purpose.
type UpdateItemRequest struct {
	Title             *string `json:"title,omitempty"`
	Author            *string `json:"author,omitempty"`
	AuthorNationality *string `json:"author_nationality,omitempty"`
	Topic             *string `json:"topic,omitempty"`
	PublicationYear   *int    `json:"publication_year,omitempty"`
	Excerpt           *string `json:"excerpt,omitempty"`
	Publisher         *string `json:"publisher,omitempty"`
}

// IsNoop reports whether applying the patch to item would change nothing.
func (r *UpdateItemRequest) IsNoop(item *Item) bool {
	changed := false
	check := func(p *string, cur string) {
		if p != nil && *p != cur {
			changed = true
		}
	}
	check(r.Title, item.Title)
	check(r.Author, item.Author)
	check(r.AuthorNationality, item.AuthorNationality)
	check(r.Topic, item.Topic)
	check(r.Excerpt, item.Excerpt)
	check(r.Publisher, item.Publisher)
	if r.PublicationYear != nil && *r.PublicationYear != item.PublicationYear {
		changed = true
	}
	return !changed
}

// Apply writes the patch onto item.
func (r *UpdateItemRequest) Apply(item *Item, now time.Time) {
	set := func(p *string, dst *string) {
		if p != nil {
			*dst = *p
		}
	}
	set(r.Title, &item.Title)
	set(r.Author, &item.Author)
	set(r.AuthorNationality, &item.AuthorNationality)
	set(r.Topic, &item.Topic)
	set(r.Excerpt, &item.Excerpt)
	set(r.Publisher, &item.Publisher)
	if r.PublicationYear != nil {
		item.PublicationYear = *r.PublicationYear
	}
	item.UpdatedAt = now
}

// SearchFilter holds the explicit, typed search criteria for the catalog.
// Empty fields are not applied. This replaces dynamic query building with
// one parameterized store method.
type SearchFilter struct {
	Title             string
	Author            string
	AuthorNationality string
	Topic             string
	PublicationYear   int
}
