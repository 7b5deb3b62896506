package allocation

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	loanmetrics "circulate/internal/loan/metrics"
	loanmodels "circulate/internal/loan/models"
	loanservice "circulate/internal/loan/service"
	reservationmetrics "circulate/internal/reservation/metrics"
	reservationmodels "circulate/internal/reservation/models"
	reservationservice "circulate/internal/reservation/service"
	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
	"circulate/pkg/platform/sentinel"
)

// Resolver is the engine's entry point. Each public operation opens one unit
// of work, builds the lifecycle services against that transaction's stores,
// runs the operation, and commits or rolls back as a whole. The request layer
// never touches the services directly.
type Resolver struct {
	tx                 TxRunner
	logger             *slog.Logger
	tracer             trace.Tracer
	loanMetrics        *loanmetrics.Metrics
	reservationMetrics *reservationmetrics.Metrics
}

type ResolverOption func(r *Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithLoanMetrics(m *loanmetrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.loanMetrics = m
	}
}

func WithReservationMetrics(m *reservationmetrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.reservationMetrics = m
	}
}

// NewResolver constructs a Resolver over the given transaction runner.
func NewResolver(tx TxRunner, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tx:     tx,
		tracer: otel.Tracer("circulate/allocation"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PlaceLoan checks out an item, converting the holder's live reservation when
// one exists.
func (r *Resolver) PlaceLoan(ctx context.Context, req loanmodels.CreateLoanRequest) (*loanmodels.CreateLoanResult, error) {
	ctx, span := r.tracer.Start(ctx, "allocation.PlaceLoan",
		trace.WithAttributes(
			attribute.Int64("item_id", req.ItemID.Int64()),
			attribute.Int64("holder_id", req.HolderID.Int64()),
		))
	defer span.End()

	var result *loanmodels.CreateLoanResult
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.loanService(uow).Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	span.SetAttributes(attribute.Bool("via_reservation", result.ViaReservation))
	return result, nil
}

// PlaceReservation claims a future slot on an item.
func (r *Resolver) PlaceReservation(ctx context.Context, req reservationmodels.CreateReservationRequest) (*reservationmodels.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "allocation.PlaceReservation",
		trace.WithAttributes(
			attribute.Int64("item_id", req.ItemID.Int64()),
			attribute.Int64("holder_id", req.HolderID.Int64()),
		))
	defer span.End()

	var result *reservationmodels.Reservation
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.reservationService(uow).Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	return result, nil
}

// GetLoan returns one loan.
func (r *Resolver) GetLoan(ctx context.Context, loanID id.LoanID) (*loanmodels.Loan, error) {
	var result *loanmodels.Loan
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.loanService(uow).Get(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

// ListLoans returns all non-deleted loans.
func (r *Resolver) ListLoans(ctx context.Context) ([]*loanmodels.Loan, error) {
	var result []*loanmodels.Loan
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.loanService(uow).List(ctx)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

// UpdateLoan patches a loan's dates, or its item/holder when not converted.
func (r *Resolver) UpdateLoan(ctx context.Context, loanID id.LoanID, req loanmodels.UpdateLoanRequest) (*loanmodels.Loan, error) {
	ctx, span := r.tracer.Start(ctx, "allocation.UpdateLoan",
		trace.WithAttributes(attribute.Int64("loan_id", loanID.Int64())))
	defer span.End()

	var result *loanmodels.Loan
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.loanService(uow).Update(ctx, loanID, req)
		return err
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	return result, nil
}

// CancelLoan soft-deletes a loan and frees the item when nothing else holds
// it.
func (r *Resolver) CancelLoan(ctx context.Context, loanID id.LoanID) error {
	ctx, span := r.tracer.Start(ctx, "allocation.CancelLoan",
		trace.WithAttributes(attribute.Int64("loan_id", loanID.Int64())))
	defer span.End()

	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return r.loanService(uow).Remove(ctx, loanID)
	})
	if err != nil {
		return r.fail(span, err)
	}
	return nil
}

// GetReservation returns one reservation.
func (r *Resolver) GetReservation(ctx context.Context, resID id.ReservationID) (*reservationmodels.Reservation, error) {
	var result *reservationmodels.Reservation
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.reservationService(uow).Get(ctx, resID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

// ListReservations returns all non-deleted reservations.
func (r *Resolver) ListReservations(ctx context.Context) ([]*reservationmodels.Reservation, error) {
	var result []*reservationmodels.Reservation
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.reservationService(uow).List(ctx)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

// UpdateReservation patches a reservation; a patch setting deleted=true is
// the cancellation path.
func (r *Resolver) UpdateReservation(ctx context.Context, resID id.ReservationID, req reservationmodels.UpdateReservationRequest) (*reservationmodels.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "allocation.UpdateReservation",
		trace.WithAttributes(attribute.Int64("reservation_id", resID.Int64())))
	defer span.End()

	var result *reservationmodels.Reservation
	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = r.reservationService(uow).Update(ctx, resID, req)
		return err
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	return result, nil
}

// CancelReservation soft-deletes a reservation unless it still backs an
// active loan.
func (r *Resolver) CancelReservation(ctx context.Context, resID id.ReservationID) error {
	ctx, span := r.tracer.Start(ctx, "allocation.CancelReservation",
		trace.WithAttributes(attribute.Int64("reservation_id", resID.Int64())))
	defer span.End()

	err := r.tx.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return r.reservationService(uow).Remove(ctx, resID)
	})
	if err != nil {
		return r.fail(span, err)
	}
	return nil
}

func (r *Resolver) loanService(uow UnitOfWork) *loanservice.Service {
	return loanservice.New(
		uow.Items,
		uow.Holders,
		uow.Loans,
		uow.Reservations,
		NewQuery(uow.Loans, uow.Reservations),
		NewProjector(uow.Items, uow.Loans, uow.Reservations),
		loanservice.WithLogger(r.logger),
		loanservice.WithMetrics(r.loanMetrics),
	)
}

func (r *Resolver) reservationService(uow UnitOfWork) *reservationservice.Service {
	return reservationservice.New(
		uow.Items,
		uow.Holders,
		uow.Reservations,
		uow.Loans,
		NewQuery(uow.Loans, uow.Reservations),
		NewProjector(uow.Items, uow.Loans, uow.Reservations),
		reservationservice.WithLogger(r.logger),
		reservationservice.WithMetrics(r.reservationMetrics),
	)
}

func (r *Resolver) fail(span trace.Span, err error) error {
	err = translate(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}

// translate maps transaction-runner failures into the domain taxonomy. A
// bounded lock wait that expired means another request holds the item; the
// caller may retry.
func translate(err error) error {
	if errors.Is(err, sentinel.ErrLockTimeout) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "item is busy, retry the request")
	}
	return err
}
