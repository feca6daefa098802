package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Event type tags pushed over a board's event stream.
const (
	EventConnected      = "connected"
	EventPresenceUpdate = "presence:update"
	EventChatMessage    = "chat:message"
	EventCardCreated    = "card:created"
	EventCardUpdated    = "card:updated"
	EventCardMoved      = "card:moved"
	EventCardDeleted    = "card:deleted"
	EventColumnCreated  = "column:created"
	EventColumnUpdated  = "column:updated"
	EventColumnDeleted  = "column:deleted"
	EventColumnsOrdered = "column:reordered"
	EventCommentAdded   = "comment:added"
)

// Event is one frame of the board event stream. Data carries the full
// updated entity for mutation events, except card:moved which carries
// only the move coordinates and relies on a follow-up board refetch.
type Event struct {
	Type    string                 `json:"type"`
	BoardID string                 `json:"boardId"`
	Data    sonic.NoCopyRawMessage `json:"data,omitempty"`
}

// CardMovedData is the card:moved payload.
type CardMovedData struct {
	CardID     string `json:"cardId"`
	ToColumnID string `json:"toColumnId"`
	Position   int    `json:"position"`
}

// CardData wraps a full card entity payload.
type CardData struct {
	Card Card `json:"card"`
}

// ColumnData wraps a full column entity payload.
type ColumnData struct {
	Column Column `json:"column"`
}

// CommentData wraps a comment payload.
type CommentData struct {
	Comment Comment `json:"comment"`
}

// PresenceData is the presence:update payload: the complete viewer list.
type PresenceData struct {
	Users []PresenceUser `json:"users"`
}

// ChatMessageData wraps a chat message payload.
type ChatMessageData struct {
	Message ChatMessage `json:"message"`
}

// DecodeEvent parses one stream frame payload.
func DecodeEvent(frame []byte) (Event, error) {
	var ev Event
	if err := sonic.ConfigStd.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

// CardMoved decodes the card:moved payload.
func (e Event) CardMoved() (CardMovedData, error) {
	var d CardMovedData
	if err := sonic.ConfigStd.Unmarshal(e.Data, &d); err != nil {
		return CardMovedData{}, fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return d, nil
}

// Presence decodes the presence:update payload.
func (e Event) Presence() (PresenceData, error) {
	var d PresenceData
	if err := sonic.ConfigStd.Unmarshal(e.Data, &d); err != nil {
		return PresenceData{}, fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return d, nil
}

// CardID extracts the affected card id from events that carry one, so the
// consumer can invalidate a detail view showing that card. It returns ""
// for events without a card payload.
func (e Event) CardID() string {
	switch e.Type {
	case EventCardMoved:
		d, err := e.CardMoved()
		if err != nil {
			return ""
		}
		return d.CardID
	case EventCardCreated, EventCardUpdated, EventCardDeleted:
		var d CardData
		if err := sonic.ConfigStd.Unmarshal(e.Data, &d); err != nil {
			return ""
		}
		return d.Card.ID
	case EventCommentAdded:
		var d CommentData
		if err := sonic.ConfigStd.Unmarshal(e.Data, &d); err != nil {
			return ""
		}
		return d.Comment.CardID
	default:
		return ""
	}
}

// MutatesBoard reports whether the event invalidates the board snapshot
// and requires an authoritative refetch.
func (e Event) MutatesBoard() bool {
	switch e.Type {
	case EventCardCreated, EventCardUpdated, EventCardMoved, EventCardDeleted,
		EventColumnCreated, EventColumnUpdated, EventColumnDeleted, EventColumnsOrdered,
		EventCommentAdded:
		return true
	case EventConnected, EventPresenceUpdate, EventChatMessage:
		return false
	default:
		return false
	}
}
