// Package service implements the loan lifecycle: checkout, reservation
// conversion, updates, and soft-delete returns.
//
// Every mutating method assumes it runs inside a unit of work whose item row
// lock was taken by GetForUpdate; callers (the conflict resolver) own the
// transaction boundary.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"circulate/internal/allocation/interval"
	catalogmodels "circulate/internal/catalog/models"
	holdermodels "circulate/internal/holder/models"
	"circulate/internal/loan/metrics"
	"circulate/internal/loan/models"
	reservationmodels "circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/sentinel"
	"circulate/pkg/requestcontext"
)

type ItemStore interface {
	GetForUpdate(ctx context.Context, itemID id.ItemID) (*catalogmodels.Item, error)
}

type HolderStore interface {
	FindByID(ctx context.Context, holderID id.HolderID) (*holdermodels.Holder, error)
}

type LoanStore interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error)
	List(ctx context.Context) ([]*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
}

// ReservationStore is the read-mostly reservation surface the loan side
// needs: find the holder's live reservation for conversion and write back
// the conversion link.
type ReservationStore interface {
	FindActiveByItemAndHolder(ctx context.Context, itemID id.ItemID, holderID id.HolderID) (*reservationmodels.Reservation, error)
	Update(ctx context.Context, res *reservationmodels.Reservation) error
}

// OverlapQuery answers which existing allocations collide with a candidate
// range, inside the current unit of work.
type OverlapQuery interface {
	FindOverlappingLoans(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*models.Loan, error)
	FindOverlappingReservations(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID, today time.Time) ([]*reservationmodels.Reservation, error)
}

// AvailabilityProjector recomputes the derived item.available flag.
type AvailabilityProjector interface {
	Recompute(ctx context.Context, itemID id.ItemID) error
}

// Service orchestrates loan creation, update, and return.
type Service struct {
	items        ItemStore
	holders      HolderStore
	loans        LoanStore
	reservations ReservationStore
	query        OverlapQuery
	projector    AvailabilityProjector
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(items ItemStore, holders HolderStore, loans LoanStore, reservations ReservationStore, query OverlapQuery, projector AvailabilityProjector, opts ...Option) *Service {
	s := &Service{
		items:        items,
		holders:      holders,
		loans:        loans,
		reservations: reservations,
		query:        query,
		projector:    projector,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create places a loan. When the holder has a live reservation on the item,
// the loan is created from it instead: the requested range is discarded in
// favor of the reservation's, and both records end up linked.
func (s *Service) Create(ctx context.Context, req models.CreateLoanRequest) (*models.CreateLoanResult, error) {
	if req.ItemID.IsZero() || req.HolderID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "item id and holder id are required")
	}
	item, err := s.lockItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	holder, err := s.holders.FindByID(ctx, req.HolderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "holder not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading holder")
	}
	if !holder.IsActive() {
		return nil, dErrors.New(dErrors.CodeNotFound, "holder not found")
	}
	if req.RequestingHolder != req.HolderID {
		s.metrics.IncrementRejected("forbidden")
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot create a loan on another holder's behalf")
	}

	now := requestcontext.Now(ctx)
	today := interval.Day(now)
	rng := interval.NewRange(req.Start, req.End)

	conflicting, err := s.query.FindOverlappingLoans(ctx, item.ID, rng, &req.HolderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking loan overlap")
	}
	if len(conflicting) > 0 {
		s.metrics.IncrementRejected("overlap")
		return nil, dErrors.New(dErrors.CodeConflict, "item is already on loan for the requested dates")
	}

	reservation, err := s.reservations.FindActiveByItemAndHolder(ctx, item.ID, req.HolderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "looking up holder reservation")
	}

	viaReservation := reservation != nil && reservation.ActiveOn(today)
	loan := &models.Loan{
		ItemID:    item.ID,
		HolderID:  req.HolderID,
		Start:     rng.Start,
		End:       rng.End,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if viaReservation {
		// Conversion: the reservation's slot wins over the requested dates.
		loan.Start = interval.Day(reservation.ReservedFrom)
		loan.End = interval.DayPtr(reservation.ExpiresAt)
		loan.ReservationID = &reservation.ID
	} else {
		held, err := s.query.FindOverlappingReservations(ctx, item.ID, rng, &req.HolderID, today)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking reservation overlap")
		}
		if len(held) > 0 {
			s.metrics.IncrementRejected("priority")
			return nil, dErrors.New(dErrors.CodeConflict, "item is reserved by another holder for the requested dates")
		}
	}

	if err := s.loans.Create(ctx, loan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting loan")
	}
	if viaReservation {
		reservation.LoanID = &loan.ID
		reservation.UpdatedAt = now
		if err := s.reservations.Update(ctx, reservation); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "linking reservation to loan")
		}
	}
	if err := s.projector.Recompute(ctx, item.ID); err != nil {
		return nil, err
	}

	origin := "direct"
	if viaReservation {
		origin = "reservation"
	}
	s.metrics.IncrementCreated(origin)
	s.log(ctx, "loan created",
		"loan_id", loan.ID,
		"item_id", loan.ItemID,
		"holder_id", loan.HolderID,
		"via_reservation", viaReservation)

	return &models.CreateLoanResult{Loan: loan, ViaReservation: viaReservation}, nil
}

// Get returns a loan by id, deleted or not.
func (s *Service) Get(ctx context.Context, loanID id.LoanID) (*models.Loan, error) {
	loan, err := s.loans.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "loan not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading loan")
	}
	return loan, nil
}

// List returns all non-deleted loans.
func (s *Service) List(ctx context.Context) ([]*models.Loan, error) {
	loans, err := s.loans.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing loans")
	}
	return loans, nil
}

// Update patches a loan. Converted loans may only have their dates changed;
// any date change re-runs the overlap checks with the loan's own holder
// excluded. Moving a loan to another item recomputes availability on both
// the old and the new item.
func (s *Service) Update(ctx context.Context, loanID id.LoanID, req models.UpdateLoanRequest) (*models.Loan, error) {
	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Deleted {
		return nil, dErrors.New(dErrors.CodeConflict, "loan is deleted")
	}
	if loan.Converted() && req.Reassigns() {
		s.metrics.IncrementRejected("converted_reassign")
		return nil, dErrors.New(dErrors.CodeConflict, "a loan created from a reservation cannot change item or holder")
	}

	previousItem := loan.ItemID
	if req.ItemID != nil {
		loan.ItemID = *req.ItemID
	}
	if req.HolderID != nil {
		holder, err := s.holders.FindByID(ctx, *req.HolderID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "holder not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading holder")
		}
		if !holder.IsActive() {
			return nil, dErrors.New(dErrors.CodeNotFound, "holder not found")
		}
		loan.HolderID = *req.HolderID
	}
	if req.Start != nil {
		loan.Start = interval.Day(*req.Start)
	}
	if req.End != nil {
		loan.End = interval.DayPtr(req.End)
	}

	// Lock the target item (and implicitly the source when unchanged) before
	// rechecking overlap against the patched range.
	if _, err := s.lockItem(ctx, loan.ItemID); err != nil {
		return nil, err
	}
	if req.ChangesDates() || req.Reassigns() {
		now := requestcontext.Now(ctx)
		today := interval.Day(now)
		rng := loan.Range()

		conflicting, err := s.query.FindOverlappingLoans(ctx, loan.ItemID, rng, &loan.HolderID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking loan overlap")
		}
		if len(conflicting) > 0 {
			s.metrics.IncrementRejected("overlap")
			return nil, dErrors.New(dErrors.CodeConflict, "updated dates collide with another holder's loan")
		}
		held, err := s.query.FindOverlappingReservations(ctx, loan.ItemID, rng, &loan.HolderID, today)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking reservation overlap")
		}
		if len(held) > 0 {
			s.metrics.IncrementRejected("priority")
			return nil, dErrors.New(dErrors.CodeConflict, "updated dates collide with another holder's reservation")
		}
	}

	loan.UpdatedAt = requestcontext.Now(ctx)
	if err := s.loans.Update(ctx, loan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting loan update")
	}
	if err := s.projector.Recompute(ctx, loan.ItemID); err != nil {
		return nil, err
	}
	if previousItem != loan.ItemID {
		if err := s.projector.Recompute(ctx, previousItem); err != nil {
			return nil, err
		}
	}

	s.log(ctx, "loan updated", "loan_id", loan.ID, "item_id", loan.ItemID)
	return loan, nil
}

// Remove soft-deletes a loan and frees the item if nothing else occupies it.
// Removing an already-deleted loan is a conflict, never a silent success.
func (s *Service) Remove(ctx context.Context, loanID id.LoanID) error {
	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Deleted {
		s.metrics.IncrementRejected("already_deleted")
		return dErrors.New(dErrors.CodeConflict, "loan is already deleted")
	}

	if _, err := s.lockItem(ctx, loan.ItemID); err != nil {
		return err
	}

	loan.Deleted = true
	loan.UpdatedAt = requestcontext.Now(ctx)
	if err := s.loans.Update(ctx, loan); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting loan removal")
	}
	if err := s.projector.Recompute(ctx, loan.ItemID); err != nil {
		return err
	}

	s.metrics.IncrementCancelled()
	s.log(ctx, "loan removed", "loan_id", loan.ID, "item_id", loan.ItemID)
	return nil
}

// lockItem takes the item's row lock for the rest of the unit of work and
// rejects missing or soft-deleted items.
func (s *Service) lockItem(ctx context.Context, itemID id.ItemID) (*catalogmodels.Item, error) {
	item, err := s.items.GetForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "locking item")
	}
	if item.Deleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	return item, nil
}

func (s *Service) log(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}
