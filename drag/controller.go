// Package drag runs the lifecycle of one reordering gesture: start, live
// preview mutation, commit or cancel.
package drag

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/geom"
	"github.com/GitBakko/Notiq-sub001/store"
)

// Kind distinguishes card drags from column drags.
type Kind int

const (
	KindCard Kind = iota
	KindColumn
)

var (
	// ErrNoSession is returned by gesture methods outside a drag.
	ErrNoSession = errors.New("drag: no active session")
	// ErrSessionActive is returned when a gesture starts while one is running.
	ErrSessionActive = errors.New("drag: session already active")
)

// Outcome is the result of a committed gesture: exactly one authoritative
// operation, or a no-op when the final state equals the pre-drag state.
type Outcome struct {
	NoOp bool

	// CardMove is set for committed card drags.
	CardMove *CardMove
	// ColumnOrder is set for committed column drags.
	ColumnOrder []string
}

// CardMove is the single authoritative operation of a card drag.
type CardMove struct {
	CardID     string
	ToColumnID string
	Position   int
}

// session is the ephemeral state of one gesture.
type session struct {
	kind     Kind
	entityID string
	// originColumnID and originIndex locate a card before the drag, for
	// no-op detection.
	originColumnID string
	originIndex    int
	originOrder    []string

	// lastIndex is the most recent resolved insertion index. Same-column
	// reordering is previewed by the rendering layer and only written to
	// the store at commit.
	lastIndex int
	// lastColumnTarget is the most recent resolved column for column drags.
	lastColumnTarget string
}

// Controller owns at most one drag session per board. It asks the
// resolver for targets on every move and writes speculative cross-column
// moves into the store immediately.
type Controller struct {
	store    *store.Store
	resolver *geom.Resolver
	logger   *log.Logger

	active *session
}

// NewController creates a controller for one board's store.
func NewController(st *store.Store, resolver *geom.Resolver, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{store: st, resolver: resolver, logger: logger}
}

// Active reports whether a gesture is in progress.
func (c *Controller) Active() bool { return c.active != nil }

// StartCard begins a card drag. The store's working copy is created and
// external snapshot replacement is suppressed until the gesture resolves.
func (c *Controller) StartCard(cardID string) error {
	if c.active != nil {
		return ErrSessionActive
	}
	if err := c.store.BeginDrag(); err != nil {
		return err
	}
	board := c.store.Display()
	card, col := board.FindCard(cardID)
	if card == nil {
		c.store.CancelDrag()
		return errors.New("drag: unknown card " + cardID)
	}
	c.active = &session{
		kind:           KindCard,
		entityID:       cardID,
		originColumnID: col.ID,
		originIndex:    card.Position,
		lastIndex:      card.Position,
	}
	return nil
}

// StartColumn begins a column drag. Column order is only resolved at
// commit; movement causes no store mutation.
func (c *Controller) StartColumn(columnID string) error {
	if c.active != nil {
		return ErrSessionActive
	}
	if err := c.store.BeginDrag(); err != nil {
		return err
	}
	board := c.store.Display()
	if board.FindColumn(columnID) == nil {
		c.store.CancelDrag()
		return errors.New("drag: unknown column " + columnID)
	}
	c.active = &session{
		kind:        KindColumn,
		entityID:    columnID,
		originOrder: board.ColumnOrder(),
	}
	return nil
}

// MoveOver updates the session for the current pointer or focus position.
// For card drags a resolved target in a different column triggers an
// immediate speculative move; same-column index changes are only
// remembered for commit. For column drags only the target is remembered.
func (c *Controller) MoveOver(p geom.Point) error {
	s := c.active
	if s == nil {
		return ErrNoSession
	}
	switch s.kind {
	case KindColumn:
		if target, ok := c.resolver.ResolveColumn(p, s.entityID); ok {
			s.lastColumnTarget = target
		}
		return nil
	default:
		target, ok := c.resolver.ResolveCard(p, s.entityID)
		if !ok {
			return nil
		}
		board := c.store.Display()
		_, current := board.FindCard(s.entityID)
		if current == nil {
			return errors.New("drag: card vanished from working copy")
		}
		s.lastIndex = target.Index
		if target.ColumnID == current.ID {
			return nil
		}
		return c.store.ApplyLocalMove(s.entityID, current.ID, target.ColumnID, target.Index)
	}
}

// Commit ends the gesture over a valid target, computes the final
// authoritative operation and hands the store over for reconciliation.
// A no-op drag releases the store without any operation; the caller must
// issue zero network calls for it.
func (c *Controller) Commit() (Outcome, error) {
	s := c.active
	if s == nil {
		return Outcome{}, ErrNoSession
	}
	c.active = nil

	switch s.kind {
	case KindColumn:
		return c.commitColumn(s)
	default:
		return c.commitCard(s)
	}
}

func (c *Controller) commitCard(s *session) (Outcome, error) {
	board := c.store.Display()
	card, col := board.FindCard(s.entityID)
	if card == nil {
		c.store.CancelDrag()
		return Outcome{}, errors.New("drag: card vanished before commit")
	}

	finalColumn := col.ID
	finalIndex := card.Position
	if finalColumn == s.originColumnID {
		// Same-column reordering is previewed by the rendering layer, so
		// the working copy still holds the origin order; reconcile the
		// final index now.
		finalIndex = s.lastIndex
		max := len(col.Cards) - 1
		if finalIndex > max {
			finalIndex = max
		}
		if finalIndex < 0 {
			finalIndex = 0
		}
	}

	if finalColumn == s.originColumnID && finalIndex == s.originIndex {
		c.store.CancelDrag()
		return Outcome{NoOp: true}, nil
	}

	if finalColumn == s.originColumnID && finalIndex != card.Position {
		if err := c.store.ApplyLocalMove(s.entityID, finalColumn, finalColumn, finalIndex); err != nil {
			c.store.CancelDrag()
			return Outcome{}, err
		}
	}
	c.store.EndDrag()

	c.logger.WithFields(log.Fields{
		"card":    s.entityID,
		"from":    s.originColumnID,
		"to":      finalColumn,
		"index":   finalIndex,
		"gesture": "card",
	}).Debug("drag committed")

	return Outcome{CardMove: &CardMove{
		CardID:     s.entityID,
		ToColumnID: finalColumn,
		Position:   finalIndex,
	}}, nil
}

func (c *Controller) commitColumn(s *session) (Outcome, error) {
	board := c.store.Display()
	order := board.ColumnOrder()
	if s.lastColumnTarget != "" {
		order = moveID(order, s.entityID, s.lastColumnTarget)
	}

	if equalOrder(order, s.originOrder) {
		c.store.CancelDrag()
		return Outcome{NoOp: true}, nil
	}

	if err := c.store.ApplyColumnReorder(order); err != nil {
		c.store.CancelDrag()
		return Outcome{}, err
	}
	c.store.EndDrag()

	c.logger.WithFields(log.Fields{
		"column":  s.entityID,
		"order":   order,
		"gesture": "column",
	}).Debug("drag committed")

	return Outcome{ColumnOrder: order}, nil
}

// Cancel discards the speculative working copy and restores the last
// server-confirmed state.
func (c *Controller) Cancel() error {
	if c.active == nil {
		return ErrNoSession
	}
	c.active = nil
	c.store.CancelDrag()
	return nil
}

// moveID returns ids with moved relocated to the position of target.
func moveID(ids []string, moved, target string) []string {
	from, to := -1, -1
	for i, id := range ids {
		if id == moved {
			from = i
		}
		if id == target {
			to = i
		}
	}
	if from < 0 || to < 0 || from == to {
		return ids
	}
	out := make([]string, 0, len(ids))
	out = append(out, ids[:from]...)
	out = append(out, ids[from+1:]...)
	// Insert at the target's original index: past it when dragging
	// forward, before it when dragging backward.
	idx := to
	if idx > len(out) {
		idx = len(out)
	}
	out = append(out, "")
	copy(out[idx+1:], out[idx:])
	out[idx] = moved
	return out
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
