package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"circulate/internal/allocation/interval"
	"circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	"circulate/pkg/platform/sentinel"
)

type ReservationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ReservationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestReservationStoreSuite(t *testing.T) {
	suite.Run(t, new(ReservationStoreSuite))
}

func (s *ReservationStoreSuite) date(day string) time.Time {
	t, err := time.Parse("2006-01-02", day)
	s.Require().NoError(err)
	return t
}

func (s *ReservationStoreSuite) datePtr(day string) *time.Time {
	t := s.date(day)
	return &t
}

func (s *ReservationStoreSuite) newReservation(itemID id.ItemID, holderID id.HolderID, from string, expires *string) *models.Reservation {
	res := &models.Reservation{
		ItemID:       itemID,
		HolderID:     holderID,
		ReservedFrom: s.date(from),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if expires != nil {
		res.ExpiresAt = s.datePtr(*expires)
	}
	s.Require().NoError(s.store.Create(s.ctx, res))
	return res
}

func strPtr(v string) *string { return &v }

// TestCreationAndLookups verifies ID assignment and the NotFound contract.
func (s *ReservationStoreSuite) TestCreationAndLookups() {
	s.Run("assigns sequential IDs on create", func() {
		first := s.newReservation(1, 1, "2024-08-10", strPtr("2024-08-20"))
		second := s.newReservation(2, 1, "2024-08-10", nil)

		s.Equal(id.ReservationID(1), first.ID)
		s.Equal(id.ReservationID(2), second.ID)
	})

	s.Run("finds reservation by ID", func() {
		res := s.newReservation(3, 2, "2024-09-01", strPtr("2024-09-15"))

		found, err := s.store.FindByID(s.ctx, res.ID)
		s.Require().NoError(err)
		s.Equal(res.ItemID, found.ItemID)
		s.Equal(res.HolderID, found.HolderID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestList verifies soft-deleted reservations are excluded from listings.
func (s *ReservationStoreSuite) TestList() {
	live := s.newReservation(1, 1, "2024-08-10", strPtr("2024-08-20"))
	gone := s.newReservation(2, 1, "2024-08-10", nil)
	gone.Deleted = true
	s.Require().NoError(s.store.Update(s.ctx, gone))

	reservations, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(reservations, 1)
	s.Equal(live.ID, reservations[0].ID)
}

// TestUpdates verifies persistence and the NotFound contract.
func (s *ReservationStoreSuite) TestUpdates() {
	s.Run("persists expiry changes", func() {
		res := s.newReservation(1, 1, "2024-08-10", strPtr("2024-08-20"))
		res.ExpiresAt = s.datePtr("2024-08-25")
		s.Require().NoError(s.store.Update(s.ctx, res))

		found, err := s.store.FindByID(s.ctx, res.ID)
		s.Require().NoError(err)
		s.Require().NotNil(found.ExpiresAt)
		s.True(found.ExpiresAt.Equal(s.date("2024-08-25")))
	})

	s.Run("returns ErrNotFound for non-existent reservation", func() {
		err := s.store.Update(s.ctx, &models.Reservation{ID: 999})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestFindOverlapping verifies the day-granular overlap predicate and the
// holder exclusion. Expiry pruning is the caller's job, so an expired but
// non-deleted reservation is still returned here.
func (s *ReservationStoreSuite) TestFindOverlapping() {
	itemID := id.ItemID(10)

	s.Run("finds reservations sharing a day with the range", func() {
		res := s.newReservation(itemID, 1, "2024-08-10", strPtr("2024-08-20"))

		found, err := s.store.FindOverlapping(s.ctx, itemID,
			interval.NewRange(s.date("2024-08-20"), s.datePtr("2024-08-25")), nil)
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(res.ID, found[0].ID)
	})

	s.Run("ignores disjoint ranges", func() {
		found, err := s.store.FindOverlapping(s.ctx, itemID,
			interval.NewRange(s.date("2024-08-21"), s.datePtr("2024-08-25")), nil)
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("open-ended reservation overlaps any later range", func() {
		s.newReservation(itemID, 2, "2024-09-01", nil)

		found, err := s.store.FindOverlapping(s.ctx, itemID,
			interval.NewRange(s.date("2030-01-01"), s.datePtr("2030-01-02")), nil)
		s.Require().NoError(err)
		s.Len(found, 1)
	})

	s.Run("skips the excluded holder", func() {
		holder := id.HolderID(1)
		found, err := s.store.FindOverlapping(s.ctx, itemID,
			interval.NewRange(s.date("2024-08-10"), s.datePtr("2024-08-20")), &holder)
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("skips deleted reservations", func() {
		deleted := s.newReservation(itemID, 3, "2024-08-12", strPtr("2024-08-14"))
		deleted.Deleted = true
		s.Require().NoError(s.store.Update(s.ctx, deleted))

		found, err := s.store.FindOverlapping(s.ctx, itemID,
			interval.NewRange(s.date("2024-08-12"), s.datePtr("2024-08-14")), nil)
		s.Require().NoError(err)
		s.Len(found, 1) // only holder 1's 08-10..08-20 reservation
	})
}

// TestMaybeFinders verifies the (nil, nil) contract of the targeted lookups.
func (s *ReservationStoreSuite) TestMaybeFinders() {
	itemID := id.ItemID(20)
	holderID := id.HolderID(5)
	res := s.newReservation(itemID, holderID, "2024-08-10", strPtr("2024-08-20"))

	s.Run("FindActiveByItemAndHolder matches holder and item", func() {
		found, err := s.store.FindActiveByItemAndHolder(s.ctx, itemID, holderID)
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal(res.ID, found.ID)

		found, err = s.store.FindActiveByItemAndHolder(s.ctx, itemID, 6)
		s.Require().NoError(err)
		s.Nil(found)
	})

	s.Run("FindByHolderItemAndStart matches the exact start day", func() {
		found, err := s.store.FindByHolderItemAndStart(s.ctx, holderID, itemID, s.date("2024-08-10"))
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal(res.ID, found.ID)

		found, err = s.store.FindByHolderItemAndStart(s.ctx, holderID, itemID, s.date("2024-08-11"))
		s.Require().NoError(err)
		s.Nil(found)
	})

	s.Run("FindActiveByItemAndStart matches any holder", func() {
		found, err := s.store.FindActiveByItemAndStart(s.ctx, itemID, s.date("2024-08-10"))
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal(res.ID, found.ID)
	})

	s.Run("finders skip deleted reservations", func() {
		res.Deleted = true
		s.Require().NoError(s.store.Update(s.ctx, res))

		found, err := s.store.FindActiveByItemAndHolder(s.ctx, itemID, holderID)
		s.Require().NoError(err)
		s.Nil(found)

		found, err = s.store.FindActiveByItemAndStart(s.ctx, itemID, s.date("2024-08-10"))
		s.Require().NoError(err)
		s.Nil(found)
	})
}

// TestListActiveByHolderAndStart verifies the same-day cap query sees all of
// a holder's reservations for one start day, across items.
func (s *ReservationStoreSuite) TestListActiveByHolderAndStart() {
	holderID := id.HolderID(7)
	s.newReservation(1, holderID, "2024-08-10", strPtr("2024-08-20"))
	s.newReservation(2, holderID, "2024-08-10", strPtr("2024-08-20"))
	s.newReservation(3, holderID, "2024-08-11", strPtr("2024-08-20"))
	s.newReservation(4, 8, "2024-08-10", strPtr("2024-08-20"))

	reservations, err := s.store.ListActiveByHolderAndStart(s.ctx, holderID, s.date("2024-08-10"))
	s.Require().NoError(err)
	s.Len(reservations, 2)
}

// TestCountActiveByItem verifies only non-deleted reservations feed the
// availability projection.
func (s *ReservationStoreSuite) TestCountActiveByItem() {
	itemID := id.ItemID(30)

	count, err := s.store.CountActiveByItem(s.ctx, itemID)
	s.Require().NoError(err)
	s.Zero(count)

	s.newReservation(itemID, 1, "2024-08-10", strPtr("2024-08-20"))
	gone := s.newReservation(itemID, 2, "2024-09-01", nil)
	gone.Deleted = true
	s.Require().NoError(s.store.Update(s.ctx, gone))

	count, err = s.store.CountActiveByItem(s.ctx, itemID)
	s.Require().NoError(err)
	s.Equal(1, count)
}
