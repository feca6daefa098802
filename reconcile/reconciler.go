// Package reconcile turns a committed drag outcome into exactly one
// authoritative network operation and re-syncs the local store from the
// server's answer.
package reconcile

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/drag"
	"github.com/GitBakko/Notiq-sub001/store"
)

const tracerName = "notiq.board.reconcile"

// BoardAPI is the slice of the external collaborator the reconciler
// needs: one mutation endpoint per gesture kind plus the snapshot fetch.
type BoardAPI interface {
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	MoveCard(ctx context.Context, cardID, toColumnID string, position int) error
	ReorderColumns(ctx context.Context, orderedColumnIDs []string) error
}

// Notifier surfaces a user-visible, non-blocking notification. Exactly
// one notification is emitted per failed attempt; nothing is retried
// automatically.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Reconciler owns the commit path for one board's store.
type Reconciler struct {
	store    *store.Store
	api      BoardAPI
	notifier Notifier
	logger   *log.Logger
	tracer   trace.Tracer
}

// New creates a reconciler. A nil notifier drops notifications; a nil
// logger uses the logrus standard logger.
func New(st *store.Store, api BoardAPI, notifier Notifier, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reconciler{
		store:    st,
		api:      api,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Commit dispatches a drag outcome to the right authoritative call. No-op
// outcomes issue zero network calls.
func (r *Reconciler) Commit(ctx context.Context, out drag.Outcome) error {
	switch {
	case out.NoOp:
		return nil
	case out.CardMove != nil:
		m := out.CardMove
		return r.CommitCardMove(ctx, m.CardID, m.ToColumnID, m.Position)
	case out.ColumnOrder != nil:
		return r.CommitColumnReorder(ctx, out.ColumnOrder)
	default:
		return nil
	}
}

// CommitCardMove issues the authoritative card move, then refetches the
// snapshot and installs it. On any failure the store reverts to the last
// known-good state and one notification is emitted.
func (r *Reconciler) CommitCardMove(ctx context.Context, cardID, toColumnID string, position int) error {
	ctx, span := r.tracer.Start(ctx, "board.commit_card_move", trace.WithAttributes(
		attribute.String("board.id", r.store.BoardID()),
		attribute.String("card.id", cardID),
		attribute.String("column.id", toColumnID),
		attribute.Int("card.position", position),
	))
	defer span.End()

	return r.commit(ctx, span, "card_move", func(ctx context.Context) error {
		return r.api.MoveCard(ctx, cardID, toColumnID, position)
	})
}

// CommitColumnReorder issues the authoritative column order, then
// refetches and installs the snapshot, with the same failure handling as
// CommitCardMove.
func (r *Reconciler) CommitColumnReorder(ctx context.Context, orderedColumnIDs []string) error {
	ctx, span := r.tracer.Start(ctx, "board.commit_column_reorder", trace.WithAttributes(
		attribute.String("board.id", r.store.BoardID()),
		attribute.Int("column.count", len(orderedColumnIDs)),
	))
	defer span.End()

	return r.commit(ctx, span, "column_reorder", func(ctx context.Context) error {
		return r.api.ReorderColumns(ctx, orderedColumnIDs)
	})
}

// commit runs one mutate-then-refetch cycle with the store marked
// in-flight throughout, so concurrent stream refreshes cannot clobber
// the optimistic state mid-commit.
func (r *Reconciler) commit(ctx context.Context, span trace.Span, op string, mutate func(context.Context) error) (err error) {
	metrics := newCommitMetrics(r.logger, op)
	defer func() {
		metrics.Log(r.store.BoardID(), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	r.store.MarkInFlight()

	mutateStart := time.Now()
	if err = mutate(ctx); err != nil {
		metrics.ObserveMutate(time.Since(mutateStart))
		metrics.SetErrorStage("mutate")
		r.fail(err)
		return err
	}
	metrics.ObserveMutate(time.Since(mutateStart))

	refetchStart := time.Now()
	board, fetchErr := r.api.FetchBoard(ctx, r.store.BoardID())
	metrics.ObserveRefetch(time.Since(refetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("refetch")
		err = fetchErr
		r.fail(err)
		return err
	}

	r.store.ClearInFlight()
	r.store.ReplaceFromServer(board)
	return nil
}

// fail reverts the optimistic state and notifies the user once. Failed
// drags are never retried automatically; the user re-attempts.
func (r *Reconciler) fail(err error) {
	r.store.ClearInFlight()
	r.store.Revert()
	if r.notifier != nil {
		r.notifier.Notify("Board change could not be saved: " + err.Error())
	}
}
