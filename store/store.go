// Package store holds the client-side state of open boards: the last
// server-confirmed snapshot plus the speculative working copy mutated by
// an in-progress drag.
package store

import (
	"errors"
	"sync"

	"github.com/GitBakko/Notiq-sub001/domain"
)

var (
	// ErrDragActive is returned when a second drag is started on a board
	// that already has one.
	ErrDragActive = errors.New("store: drag already active")
	// ErrNoDrag is returned when a drag-scoped mutation runs outside a drag.
	ErrNoDrag = errors.New("store: no active drag")
	// ErrClosed is returned by mutations on a torn-down store.
	ErrClosed = errors.New("store: closed")
)

// Store is the per-board state holder. Display state is the confirmed
// board, or the speculative working copy while a drag or an in-flight
// commit exists. All methods are safe for concurrent use, but the event
// consumer applies events one at a time and never re-enters mutations
// concurrently.
type Store struct {
	boardID string

	mu         sync.Mutex
	good       *domain.Board
	working    *domain.Board
	// preDrag is the working copy that was on display when the current
	// gesture started, kept so CancelDrag can restore it. Nil when the
	// gesture started from the confirmed snapshot.
	preDrag    *domain.Board
	dragActive bool
	inFlight   int
	closed     bool

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// New creates an empty store for the given board id.
func New(boardID string) *Store {
	return &Store{
		boardID: boardID,
		subs:    make(map[chan struct{}]struct{}),
	}
}

// BoardID returns the id this store tracks.
func (s *Store) BoardID() string { return s.boardID }

// Display returns a copy of the board as it should currently be shown:
// the working copy while one exists, otherwise the confirmed snapshot.
// It returns nil before the first server snapshot arrives.
func (s *Store) Display() *domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working != nil {
		return s.working.Clone()
	}
	return s.good.Clone()
}

// Confirmed returns a copy of the last server-confirmed snapshot.
func (s *Store) Confirmed() *domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.good.Clone()
}

// BeginDrag creates the speculative working copy and blocks snapshot
// replacement until the drag resolves. It fails when another drag is
// active or no snapshot has arrived yet.
func (s *Store) BeginDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.dragActive {
		return ErrDragActive
	}
	if s.good == nil {
		return errors.New("store: no board loaded")
	}
	s.dragActive = true
	// A commit still in flight keeps its optimistic state on display;
	// a new gesture starts from that state, never from the stale
	// confirmed snapshot.
	s.preDrag = s.working
	if s.working != nil {
		s.working = s.working.Clone()
	} else {
		s.working = s.good.Clone()
	}
	return nil
}

// EndDrag marks the gesture finished but keeps the working copy on
// display while the authoritative commit is in flight.
func (s *Store) EndDrag() {
	s.mu.Lock()
	s.dragActive = false
	s.preDrag = nil
	s.mu.Unlock()
	s.notify()
}

// CancelDrag discards the gesture's working copy and restores whatever
// was on display when the gesture started: the confirmed snapshot, or
// the optimistic state of a commit still in flight.
func (s *Store) CancelDrag() {
	s.mu.Lock()
	s.dragActive = false
	s.working = s.preDrag
	s.preDrag = nil
	s.mu.Unlock()
	s.notify()
}

// DragActive reports whether a drag session currently owns the store.
func (s *Store) DragActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragActive
}

// ApplyLocalMove performs a speculative cross-column card move on the
// working copy: remove from the source column, insert into the
// destination at index, renumber both columns densely.
func (s *Store) ApplyLocalMove(cardID, fromColumnID, toColumnID string, index int) error {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.notify()
	}()
	if !s.dragActive || s.working == nil {
		return ErrNoDrag
	}
	src := s.working.FindColumn(fromColumnID)
	dst := s.working.FindColumn(toColumnID)
	if src == nil || dst == nil {
		return errors.New("store: unknown column")
	}
	card, ok := src.RemoveCard(cardID)
	if !ok {
		return errors.New("store: card not in source column")
	}
	dst.InsertCard(card, index)
	return nil
}

// ApplyColumnReorder rearranges the working copy's columns to the given
// order and renumbers positions.
func (s *Store) ApplyColumnReorder(orderedColumnIDs []string) error {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.notify()
	}()
	if s.working == nil {
		return ErrNoDrag
	}
	s.working.ReorderColumns(orderedColumnIDs)
	return nil
}

// MarkInFlight records one outstanding authoritative mutation. While any
// exist, ReplaceFromServer is suppressed.
func (s *Store) MarkInFlight() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
}

// ClearInFlight drops one outstanding mutation marker.
func (s *Store) ClearInFlight() {
	s.mu.Lock()
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.mu.Unlock()
}

// InFlight reports whether any authoritative mutation is outstanding.
func (s *Store) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// ReplaceFromServer installs an authoritative snapshot and drops any
// working copy. It is a no-op, returning false, while a drag session or
// an in-flight commit exists: the local gesture keeps visual precedence
// until it resolves. It is also a no-op on a closed store.
func (s *Store) ReplaceFromServer(board *domain.Board) bool {
	s.mu.Lock()
	if s.closed || s.dragActive || s.inFlight > 0 {
		s.mu.Unlock()
		return false
	}
	s.good = board.Clone()
	s.working = nil
	s.mu.Unlock()
	s.notify()
	return true
}

// Revert discards the working copy after a failed commit, restoring the
// last confirmed snapshot as the display state.
func (s *Store) Revert() {
	s.mu.Lock()
	s.working = nil
	s.preDrag = nil
	s.mu.Unlock()
	s.notify()
}

// Close tears the store down. Any late ReplaceFromServer is discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.dragActive = false
	s.working = nil
	s.preDrag = nil
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a change-notification channel. Notifications are
// collapsed: a slow receiver sees at most one pending signal.
func (s *Store) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a previously registered channel.
func (s *Store) Unsubscribe(ch chan struct{}) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	s.subsMu.Unlock()
}

func (s *Store) notify() {
	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subsMu.Unlock()
}
