package boardd

import (
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GitBakko/Notiq-sub001/domain"
)

// subscriber is one open SSE connection.
type subscriber struct {
	userID string
	ch     chan []byte
}

// Broker fans events out to every SSE subscriber of a board except,
// when asked, the originator: a client must never rely on receiving an
// echo of its own mutation.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	// viewers tracks display info per connected user for presence
	// snapshots; the count handles one user with several tabs.
	viewers map[string]map[string]*viewer
}

type viewer struct {
	user  domain.PresenceUser
	count int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[string]map[*subscriber]struct{}),
		viewers: make(map[string]map[string]*viewer),
	}
}

// Subscribe registers a connection for a board and broadcasts the
// refreshed presence snapshot.
func (b *Broker) Subscribe(boardID string, user domain.PresenceUser) *subscriber {
	sub := &subscriber{userID: user.ID, ch: make(chan []byte, 16)}
	b.mu.Lock()
	if b.subs[boardID] == nil {
		b.subs[boardID] = make(map[*subscriber]struct{})
	}
	b.subs[boardID][sub] = struct{}{}
	if b.viewers[boardID] == nil {
		b.viewers[boardID] = make(map[string]*viewer)
	}
	if v, ok := b.viewers[boardID][user.ID]; ok {
		v.count++
	} else {
		b.viewers[boardID][user.ID] = &viewer{user: user, count: 1}
	}
	b.mu.Unlock()

	b.PublishPresence(boardID)
	return sub
}

// Unsubscribe drops a connection and broadcasts the shrunk presence
// snapshot, so other viewers never see a lingering ghost.
func (b *Broker) Unsubscribe(boardID string, sub *subscriber) {
	b.mu.Lock()
	if subs, ok := b.subs[boardID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subs, boardID)
		}
	}
	if v, ok := b.viewers[boardID][sub.userID]; ok {
		v.count--
		if v.count <= 0 {
			delete(b.viewers[boardID], sub.userID)
		}
		if len(b.viewers[boardID]) == 0 {
			delete(b.viewers, boardID)
		}
	}
	b.mu.Unlock()

	b.PublishPresence(boardID)
}

// Publish sends an event to every subscriber of the board except the
// originator. Slow subscribers drop frames rather than block the sender.
func (b *Broker) Publish(boardID, originUserID string, ev domain.Event) {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return
	}
	b.broadcast(boardID, originUserID, data)
}

// PublishPresence broadcasts the full viewer snapshot to everyone on the
// board, the originator included.
func (b *Broker) PublishPresence(boardID string) {
	b.mu.Lock()
	users := make([]domain.PresenceUser, 0, len(b.viewers[boardID]))
	for _, v := range b.viewers[boardID] {
		users = append(users, v.user)
	}
	b.mu.Unlock()

	payload, err := sonic.ConfigStd.Marshal(domain.PresenceData{Users: users})
	if err != nil {
		return
	}
	data, err := sonic.ConfigStd.Marshal(domain.Event{
		Type:    domain.EventPresenceUpdate,
		BoardID: boardID,
		Data:    sonic.NoCopyRawMessage(payload),
	})
	if err != nil {
		return
	}
	b.broadcast(boardID, "", data)
}

func (b *Broker) broadcast(boardID, skipUserID string, data []byte) {
	b.mu.Lock()
	for sub := range b.subs[boardID] {
		if skipUserID != "" && sub.userID == skipUserID {
			continue
		}
		select {
		case sub.ch <- data:
		default:
		}
	}
	b.mu.Unlock()
}
