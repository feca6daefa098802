// Package engine ties the collaborative board pieces together: one
// Session per open board owns the state store, the drag controller, the
// reconciler, the event consumer and the presence tracker, and exposes
// the surface a rendering layer drives.
package engine

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/client"
	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/drag"
	"github.com/GitBakko/Notiq-sub001/geom"
	"github.com/GitBakko/Notiq-sub001/presence"
	"github.com/GitBakko/Notiq-sub001/realtime"
	"github.com/GitBakko/Notiq-sub001/reconcile"
	"github.com/GitBakko/Notiq-sub001/store"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("engine: session closed")

// Config assembles a Session. BoardID, API and Bounds are required.
type Config struct {
	BoardID string
	API     *client.Client
	// Bounds measures the rendered board for drop target resolution.
	Bounds geom.Provider
	// Registry shares one store between sessions of the same board in
	// one process. Nil means a private store.
	Registry *store.Registry
	// Cache paints a stale snapshot before the authoritative fetch.
	// Nil disables the paint.
	Cache *store.SnapshotCache
	// Notifier receives the single user-facing message of a failed
	// commit. Nil falls back to a log warning.
	Notifier reconcile.Notifier
	// HTTPClient is used for the event stream. It must not set a
	// request timeout.
	HTTPClient     *http.Client
	Logger         *log.Logger
	ReconnectDelay time.Duration

	// OnChatInvalidated fires when the chat transcript went stale.
	OnChatInvalidated func()
	// OnCardInvalidated fires when a remote mutation touched the named
	// card, so an open detail view can refetch its activity.
	OnCardInvalidated func(cardID string)
	// OnPresenceChanged fires on any presence or highlight change.
	OnPresenceChanged func()
}

// Session is one open board. Read accessors and Close are safe for
// concurrent use; the drag surface (StartCardDrag, StartColumnDrag,
// MoveOver, CommitDrag, CancelDrag) expects to be driven from a single
// goroutine, the way one input layer feeds one gesture at a time.
type Session struct {
	boardID  string
	api      *client.Client
	registry *store.Registry
	store    *store.Store
	cache    *store.SnapshotCache
	tracker  *presence.Tracker

	controller *drag.Controller
	reconciler *reconcile.Reconciler

	cancel context.CancelFunc
	// consumerDone closes when the event consumer goroutine exits.
	consumerDone chan struct{}

	logger            *log.Logger
	onChatInvalidated func()
	onCardInvalidated func(cardID string)

	mu     sync.Mutex
	closed bool
}

// Open loads the board and starts the event stream. A cached snapshot,
// when present, is painted immediately so the board renders before the
// authoritative fetch lands; the fetch then replaces it. Open fails only
// when neither source yields a board.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.BoardID == "" || cfg.API == nil || cfg.Bounds == nil {
		return nil, errors.New("engine: BoardID, API and Bounds are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = reconcile.NotifierFunc(func(message string) {
			logger.Warn(message)
		})
	}

	var st *store.Store
	if cfg.Registry != nil {
		st = cfg.Registry.Acquire(cfg.BoardID)
	} else {
		st = store.New(cfg.BoardID)
	}
	release := func() {
		if cfg.Registry != nil {
			cfg.Registry.Release(cfg.BoardID)
		} else {
			st.Close()
		}
	}

	painted := false
	if cfg.Cache != nil {
		if board, ok := cfg.Cache.Load(ctx, cfg.BoardID); ok {
			painted = st.ReplaceFromServer(board)
		}
	}

	board, err := cfg.API.FetchBoard(ctx, cfg.BoardID)
	if err != nil {
		if !painted {
			release()
			return nil, err
		}
		logger.WithFields(log.Fields{
			"board": cfg.BoardID,
			"error": err.Error(),
		}).Warn("initial fetch failed, rendering cached snapshot")
	} else {
		st.ReplaceFromServer(board)
		if cfg.Cache != nil {
			cfg.Cache.Store(ctx, board)
		}
	}

	s := &Session{
		boardID:           cfg.BoardID,
		api:               cfg.API,
		registry:          cfg.Registry,
		store:             st,
		cache:             cfg.Cache,
		controller:        drag.NewController(st, geom.NewResolver(cfg.Bounds), logger),
		reconciler:        reconcile.New(st, cfg.API, notifier, logger),
		consumerDone:      make(chan struct{}),
		logger:            logger,
		onChatInvalidated: cfg.OnChatInvalidated,
		onCardInvalidated: cfg.OnCardInvalidated,
	}
	s.tracker = presence.NewTracker(cfg.OnPresenceChanged)

	consumer := realtime.NewConsumer(realtime.Config{
		BoardID:        cfg.BoardID,
		URL:            cfg.API.BaseURL() + "/boards/" + cfg.BoardID + "/events",
		Token:          cfg.API.Token,
		HTTPClient:     cfg.HTTPClient,
		Sink:           s,
		Logger:         logger,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.consumerDone)
		consumer.Run(streamCtx)
	}()

	return s, nil
}

// Board returns the board to render: the speculative working copy while
// a gesture or commit is pending, the confirmed snapshot otherwise.
func (s *Session) Board() *domain.Board {
	return s.store.Display()
}

// Updates returns a channel that receives a signal after every display
// state change. Close releases it.
func (s *Session) Updates() chan struct{} {
	return s.store.Subscribe()
}

// StopUpdates releases a channel obtained from Updates.
func (s *Session) StopUpdates(ch chan struct{}) {
	s.store.Unsubscribe(ch)
}

// StartCardDrag begins a card gesture.
func (s *Session) StartCardDrag(cardID string) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.controller.StartCard(cardID)
}

// StartColumnDrag begins a column gesture.
func (s *Session) StartColumnDrag(columnID string) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.controller.StartColumn(columnID)
}

// MoveOver feeds the current pointer (or keyboard focus) position into
// the active gesture.
func (s *Session) MoveOver(p geom.Point) error {
	return s.controller.MoveOver(p)
}

// CommitDrag ends the active gesture and, unless it was a no-op, sends
// the single authoritative operation to the server. On failure the board
// reverts and the notifier fires exactly once; the gesture is not retried.
func (s *Session) CommitDrag(ctx context.Context) error {
	out, err := s.controller.Commit()
	if err != nil {
		return err
	}
	if err := s.reconciler.Commit(ctx, out); err != nil {
		return err
	}
	if s.cache != nil && !out.NoOp {
		if board := s.store.Confirmed(); board != nil {
			s.cache.Store(ctx, board)
		}
	}
	return nil
}

// CancelDrag abandons the active gesture and restores the pre-drag board.
func (s *Session) CancelDrag() error {
	return s.controller.Cancel()
}

// Dragging reports whether a gesture is active.
func (s *Session) Dragging() bool {
	return s.controller.Active()
}

// Presence returns the current viewer snapshot.
func (s *Session) Presence() []domain.PresenceUser {
	return s.tracker.Users()
}

// Highlighted reports whether a card currently carries a remote-move
// highlight.
func (s *Session) Highlighted(cardID string) bool {
	return s.tracker.Highlighted(cardID)
}

// Chat fetches the board's chat transcript.
func (s *Session) Chat(ctx context.Context) ([]domain.ChatMessage, error) {
	return s.api.FetchChat(ctx, s.boardID)
}

// Close clears presence, stops the event stream and releases the store.
// It blocks until the consumer goroutine exits.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Presence goes first so the UI never renders ghost viewers while
	// the stream winds down.
	s.tracker.Close()
	s.cancel()
	<-s.consumerDone

	if s.registry != nil {
		s.registry.Release(s.boardID)
	} else {
		s.store.Close()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// refetch pulls the authoritative snapshot and installs it, subject to
// the store's suppression rules. It runs on the consumer's dispatch
// goroutine, so refetches are naturally serialized.
func (s *Session) refetch() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	board, err := s.api.FetchBoard(ctx, s.boardID)
	if err != nil {
		s.logger.WithFields(log.Fields{
			"board": s.boardID,
			"error": err.Error(),
		}).Warn("refetch after remote change failed")
		return
	}
	s.store.ReplaceFromServer(board)
	if s.cache != nil {
		s.cache.Store(ctx, board)
	}
}

// Connected implements realtime.Sink. Every (re)connect refetches: the
// stream carries no replay, so events missed while disconnected only
// surface through a fresh snapshot.
func (s *Session) Connected() {
	s.refetch()
}

// PresenceSnapshot implements realtime.Sink.
func (s *Session) PresenceSnapshot(users []domain.PresenceUser) {
	s.tracker.SetUsers(users)
}

// ChatInvalidated implements realtime.Sink.
func (s *Session) ChatInvalidated() {
	if s.onChatInvalidated != nil {
		s.onChatInvalidated()
	}
}

// CardMoved implements realtime.Sink. No highlight is placed while a
// local gesture is active: the user's own drag owns the board's motion.
func (s *Session) CardMoved(move domain.CardMovedData) {
	if s.store.DragActive() {
		return
	}
	s.tracker.Highlight(move.CardID)
}

// BoardChanged implements realtime.Sink.
func (s *Session) BoardChanged(cardID string) {
	s.refetch()
	if cardID != "" && s.onCardInvalidated != nil {
		s.onCardInvalidated(cardID)
	}
}

// Disconnected implements realtime.Sink.
func (s *Session) Disconnected() {
	s.tracker.ClearUsers()
}
