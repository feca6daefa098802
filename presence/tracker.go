// Package presence tracks who else is viewing a board and which cards
// were just remotely moved.
package presence

import (
	"sync"
	"time"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/internal/consts"
)

// Tracker holds the latest presence snapshot and a set of timed card
// highlights. Presence is a pure projection of the last presence:update
// event; staleness is the server's responsibility. Highlights expire
// after a fixed window; re-highlighting a card resets its timer instead
// of stacking a second one.
type Tracker struct {
	mu         sync.Mutex
	users      []domain.PresenceUser
	highlights map[string]highlight
	// gen numbers each Highlight call so a stale timer callback, firing
	// after its entry was reset, cannot delete the fresh entry.
	gen      uint64
	ttl      time.Duration
	closed   bool
	onChange func()
}

type highlight struct {
	timer *time.Timer
	gen   uint64
}

// NewTracker creates a tracker with the standard highlight window.
// onChange, if non-nil, fires after every state change (for re-render).
func NewTracker(onChange func()) *Tracker {
	return NewTrackerTTL(consts.HighlightTTL, onChange)
}

// NewTrackerTTL creates a tracker with a custom highlight window.
func NewTrackerTTL(ttl time.Duration, onChange func()) *Tracker {
	return &Tracker{
		highlights: make(map[string]highlight),
		ttl:        ttl,
		onChange:   onChange,
	}
}

// SetUsers replaces the whole presence snapshot. Deltas are never merged.
func (t *Tracker) SetUsers(users []domain.PresenceUser) {
	t.mu.Lock()
	t.users = append([]domain.PresenceUser(nil), users...)
	t.mu.Unlock()
	t.changed()
}

// Users returns the latest presence snapshot.
func (t *Tracker) Users() []domain.PresenceUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.PresenceUser(nil), t.users...)
}

// ClearUsers drops the presence snapshot, e.g. when the stream closes.
func (t *Tracker) ClearUsers() {
	t.mu.Lock()
	t.users = nil
	t.mu.Unlock()
	t.changed()
}

// Highlight pulses the given card. A card already highlighted has its
// expiry reset, not duplicated.
func (t *Tracker) Highlight(cardID string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if h, ok := t.highlights[cardID]; ok {
		h.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.highlights[cardID] = highlight{
		timer: time.AfterFunc(t.ttl, func() { t.expire(cardID, gen) }),
		gen:   gen,
	}
	t.mu.Unlock()
	t.changed()
}

// expire removes a highlight when its window elapses. A Stop that lost
// the race against the firing timer still ends up here, so the entry is
// only removed when it belongs to the same Highlight call.
func (t *Tracker) expire(cardID string, gen uint64) {
	t.mu.Lock()
	h, ok := t.highlights[cardID]
	if !ok || h.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.highlights, cardID)
	t.mu.Unlock()
	t.changed()
}

// Highlighted reports whether the card currently pulses.
func (t *Tracker) Highlighted(cardID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.highlights[cardID]
	return ok
}

// Highlights returns the ids of all currently pulsing cards.
func (t *Tracker) Highlights() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.highlights))
	for id := range t.highlights {
		ids = append(ids, id)
	}
	return ids
}

// Close cancels every pending highlight timer and clears presence. The
// tracker accepts no further highlights afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for id, h := range t.highlights {
		h.timer.Stop()
		delete(t.highlights, id)
	}
	t.users = nil
	t.mu.Unlock()
	t.changed()
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}
