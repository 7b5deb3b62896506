// Package service implements the reservation lifecycle: placing advance
// claims, rescheduling them, and the cancellation path.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"circulate/internal/allocation/interval"
	catalogmodels "circulate/internal/catalog/models"
	holdermodels "circulate/internal/holder/models"
	loanmodels "circulate/internal/loan/models"
	"circulate/internal/reservation/metrics"
	"circulate/internal/reservation/models"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/sentinel"
	"circulate/pkg/requestcontext"
)

// A holder may claim at most this many distinct items for the same start day.
const sameDayItemCap = 2

type ItemStore interface {
	GetForUpdate(ctx context.Context, itemID id.ItemID) (*catalogmodels.Item, error)
}

type HolderStore interface {
	FindByID(ctx context.Context, holderID id.HolderID) (*holdermodels.Holder, error)
}

type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	FindByID(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	List(ctx context.Context) ([]*models.Reservation, error)
	Update(ctx context.Context, res *models.Reservation) error
	FindByHolderItemAndStart(ctx context.Context, holderID id.HolderID, itemID id.ItemID, start time.Time) (*models.Reservation, error)
	ListActiveByHolderAndStart(ctx context.Context, holderID id.HolderID, start time.Time) ([]*models.Reservation, error)
	FindActiveByItemAndStart(ctx context.Context, itemID id.ItemID, start time.Time) (*models.Reservation, error)
}

// LoanFinder resolves the loan a converted reservation is linked to, for the
// cascade guard on deletion.
type LoanFinder interface {
	FindByID(ctx context.Context, loanID id.LoanID) (*loanmodels.Loan, error)
}

type OverlapQuery interface {
	FindOverlappingLoans(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID) ([]*loanmodels.Loan, error)
	FindOverlappingReservations(ctx context.Context, itemID id.ItemID, rng interval.Range, excludeHolder *id.HolderID, today time.Time) ([]*models.Reservation, error)
}

type AvailabilityProjector interface {
	Recompute(ctx context.Context, itemID id.ItemID) error
}

// Service orchestrates reservation creation, update, and cancellation.
type Service struct {
	items        ItemStore
	holders      HolderStore
	reservations ReservationStore
	loans        LoanFinder
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
func New(items ItemStore, holders HolderStore, reservations ReservationStore, loans LoanFinder, query OverlapQuery, projector AvailabilityProjector, opts ...Option) *Service {
	s := &Service{
		items:        items,
		holders:      holders,
		reservations: reservations,
		loans:        loans,
		query:        query,
		projector:    projector,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create places a reservation after running the full conflict ladder: loan
// overlap, reservation overlap, the holder's own duplicate for the same item
// and start day, the same-day distinct-item cap, and the exact-slot guard
// against other holders.
func (s *Service) Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
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
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot create a reservation on another holder's behalf")
	}

	now := requestcontext.Now(ctx)
	today := interval.Day(now)
	start := interval.Day(req.ReservedFrom)
	rng := interval.NewRange(req.ReservedFrom, req.ExpiresAt)

	conflictingLoans, err := s.query.FindOverlappingLoans(ctx, item.ID, rng, &req.HolderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking loan overlap")
	}
	if len(conflictingLoans) > 0 {
		s.metrics.IncrementRejected("overlap")
		return nil, dErrors.New(dErrors.CodeConflict, "item is on loan to another holder for the requested dates")
	}

	conflictingRes, err := s.query.FindOverlappingReservations(ctx, item.ID, rng, &req.HolderID, today)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking reservation overlap")
	}
	if len(conflictingRes) > 0 {
		s.metrics.IncrementRejected("overlap")
		return nil, dErrors.New(dErrors.CodeConflict, "item is already reserved for the requested dates")
	}

	if err := s.checkStartSlot(ctx, req.HolderID, item.ID, start, 0); err != nil {
		return nil, err
	}

	res := &models.Reservation{
		ItemID:       item.ID,
		HolderID:     req.HolderID,
		ReservedFrom: start,
		ExpiresAt:    interval.DayPtr(req.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting reservation")
	}
	if err := s.projector.Recompute(ctx, item.ID); err != nil {
		return nil, err
	}

	s.metrics.IncrementCreated()
	s.log(ctx, "reservation created",
		"reservation_id", res.ID,
		"item_id", res.ItemID,
		"holder_id", res.HolderID)
	return res, nil
}

// Get returns a reservation by id, deleted or not.
func (s *Service) Get(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, resID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reservation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading reservation")
	}
	return res, nil
}

// List returns all non-deleted reservations.
func (s *Service) List(ctx context.Context) ([]*models.Reservation, error) {
	reservations, err := s.reservations.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing reservations")
	}
	return reservations, nil
}

// Update patches a reservation. Date changes re-run the overlap checks with
// the reservation's own holder excluded; a moved start day additionally
// re-runs the creation slot guards (duplicate, same-day cap, exact slot).
// Setting Deleted is the cancellation path and goes through Remove's guards.
func (s *Service) Update(ctx context.Context, resID id.ReservationID, req models.UpdateReservationRequest) (*models.Reservation, error) {
	if req.Deleted != nil && *req.Deleted {
		if err := s.Remove(ctx, resID); err != nil {
			return nil, err
		}
		return s.Get(ctx, resID)
	}

	res, err := s.Get(ctx, resID)
	if err != nil {
		return nil, err
	}
	if res.Deleted {
		return nil, dErrors.New(dErrors.CodeConflict, "reservation is deleted")
	}

	if req.ReservedFrom != nil {
		res.ReservedFrom = interval.Day(*req.ReservedFrom)
	}
	if req.ExpiresAt != nil {
		res.ExpiresAt = interval.DayPtr(req.ExpiresAt)
	}

	if _, err := s.lockItem(ctx, res.ItemID); err != nil {
		return nil, err
	}
	if req.ChangesDates() {
		now := requestcontext.Now(ctx)
		today := interval.Day(now)
		rng := res.Range()

		conflictingLoans, err := s.query.FindOverlappingLoans(ctx, res.ItemID, rng, &res.HolderID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking loan overlap")
		}
		if len(conflictingLoans) > 0 {
			s.metrics.IncrementRejected("overlap")
			return nil, dErrors.New(dErrors.CodeConflict, "updated dates collide with another holder's loan")
		}
		conflictingRes, err := s.query.FindOverlappingReservations(ctx, res.ItemID, rng, &res.HolderID, today)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking reservation overlap")
		}
		if len(conflictingRes) > 0 {
			s.metrics.IncrementRejected("overlap")
			return nil, dErrors.New(dErrors.CodeConflict, "updated dates collide with another holder's reservation")
		}
	}
	// A moved start day goes through the same slot guards as creation, with
	// the reservation itself excluded.
	if req.ReservedFrom != nil {
		if err := s.checkStartSlot(ctx, res.HolderID, res.ItemID, res.ReservedFrom, res.ID); err != nil {
			return nil, err
		}
	}

	res.UpdatedAt = requestcontext.Now(ctx)
	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting reservation update")
	}
	if err := s.projector.Recompute(ctx, res.ItemID); err != nil {
		return nil, err
	}

	s.log(ctx, "reservation updated", "reservation_id", res.ID, "item_id", res.ItemID)
	return res, nil
}

// Remove soft-deletes a reservation. A reservation still backing an active
// loan cannot be removed; cancelling an already-deleted reservation is a
// conflict.
func (s *Service) Remove(ctx context.Context, resID id.ReservationID) error {
	res, err := s.Get(ctx, resID)
	if err != nil {
		return err
	}
	if res.Deleted {
		s.metrics.IncrementRejected("already_deleted")
		return dErrors.New(dErrors.CodeConflict, "reservation is already deleted")
	}

	if res.Converted() {
		loan, err := s.loans.FindByID(ctx, *res.LoanID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "loading linked loan")
		}
		if loan != nil && !loan.Deleted {
			s.metrics.IncrementRejected("linked_loan")
			return dErrors.New(dErrors.CodeConflict, "reservation backs an active loan")
		}
	}

	if _, err := s.lockItem(ctx, res.ItemID); err != nil {
		return err
	}

	res.Deleted = true
	res.UpdatedAt = requestcontext.Now(ctx)
	if err := s.reservations.Update(ctx, res); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting reservation removal")
	}
	if err := s.projector.Recompute(ctx, res.ItemID); err != nil {
		return err
	}

	s.metrics.IncrementCancelled()
	s.log(ctx, "reservation removed", "reservation_id", res.ID, "item_id", res.ItemID)
	return nil
}

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

// checkStartSlot runs the start-day guards shared by Create and date-moving
// updates: the holder's own duplicate for the item and start day, the
// same-day distinct-item cap, and the exact-slot claim by another holder.
// self is the reservation being moved (0 on creation); its own row never
// counts against itself.
func (s *Service) checkStartSlot(ctx context.Context, holderID id.HolderID, itemID id.ItemID, start time.Time, self id.ReservationID) error {
	duplicate, err := s.reservations.FindByHolderItemAndStart(ctx, holderID, itemID, start)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking duplicate reservation")
	}
	if duplicate != nil && duplicate.ID != self {
		s.metrics.IncrementRejected("duplicate")
		return dErrors.New(dErrors.CodeConflict, "holder already reserved this item for that start date")
	}

	sameDay, err := s.reservations.ListActiveByHolderAndStart(ctx, holderID, start)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking same-day reservations")
	}
	if distinctItems(sameDay, self) >= sameDayItemCap {
		s.metrics.IncrementRejected("cap")
		return dErrors.Newf(dErrors.CodeConflict, "holder already has %d reservations for that start date", sameDayItemCap)
	}

	// Exact-slot guard: unlike the range-overlap checks, this also catches
	// another holder's expired-but-undeleted claim on the same day.
	taken, err := s.reservations.FindActiveByItemAndStart(ctx, itemID, start)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking slot")
	}
	if taken != nil && taken.HolderID != holderID {
		s.metrics.IncrementRejected("duplicate_slot")
		return dErrors.New(dErrors.CodeConflict, "another holder already reserved this item for that start date")
	}
	return nil
}

func distinctItems(reservations []*models.Reservation, exclude id.ReservationID) int {
	seen := make(map[id.ItemID]struct{}, len(reservations))
	for _, res := range reservations {
		if exclude != 0 && res.ID == exclude {
			continue
		}
		seen[res.ItemID] = struct{}{}
	}
	return len(seen)
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
