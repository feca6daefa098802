package boardd

import (
	"testing"
	"time"

	"github.com/GitBakko/Notiq-sub001/domain"
)

func TestBrokerSkipsOriginator(t *testing.T) {
	broker := NewBroker()
	alice := broker.Subscribe("b1", domain.PresenceUser{ID: "alice", Name: "Alice"})
	bob := broker.Subscribe("b1", domain.PresenceUser{ID: "bob", Name: "Bob"})
	drainAll(alice)
	drainAll(bob)

	broker.Publish("b1", "alice", domain.Event{Type: domain.EventCardDeleted, BoardID: "b1"})

	if ev := nextEvent(t, bob); ev.Type != domain.EventCardDeleted {
		t.Fatalf("bob expected card:deleted, got %q", ev.Type)
	}
	select {
	case data := <-alice.ch:
		t.Fatalf("alice received her own event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerIsolatesBoards(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe("b2", domain.PresenceUser{ID: "carol", Name: "Carol"})
	drainAll(sub)

	broker.Publish("b1", "", domain.Event{Type: domain.EventCardCreated, BoardID: "b1"})

	select {
	case data := <-sub.ch:
		t.Fatalf("received event for another board: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresenceCountsTabs(t *testing.T) {
	broker := NewBroker()
	first := broker.Subscribe("b1", domain.PresenceUser{ID: "alice", Name: "Alice"})
	second := broker.Subscribe("b1", domain.PresenceUser{ID: "alice", Name: "Alice"})
	observer := broker.Subscribe("b1", domain.PresenceUser{ID: "bob", Name: "Bob"})
	drainAll(first)
	drainAll(second)
	drainAll(observer)

	// Closing one of alice's two tabs must not remove her from presence.
	broker.Unsubscribe("b1", second)
	users := presenceUsers(t, observer)
	if !containsUser(users, "alice") {
		t.Fatalf("alice dropped with a tab still open: %+v", users)
	}

	broker.Unsubscribe("b1", first)
	users = presenceUsers(t, observer)
	if containsUser(users, "alice") {
		t.Fatalf("alice lingers after her last tab closed: %+v", users)
	}
}

func presenceUsers(t *testing.T, sub *subscriber) []domain.PresenceUser {
	t.Helper()
	ev := nextEvent(t, sub)
	if ev.Type != domain.EventPresenceUpdate {
		t.Fatalf("expected presence:update, got %q", ev.Type)
	}
	snapshot, err := ev.Presence()
	if err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	return snapshot.Users
}

func containsUser(users []domain.PresenceUser, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func drainAll(sub *subscriber) {
	for {
		select {
		case <-sub.ch:
		default:
			return
		}
	}
}
