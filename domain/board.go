package domain

// Board is the unit of collaboration: an ordered list of columns plus
// metadata. The server snapshot is the source of truth; clients hold
// copies of it.
type Board struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	OwnerID      string   `json:"ownerId"`
	CoverURL     string   `json:"coverUrl,omitempty"`
	LinkedNoteID string   `json:"linkedNoteId,omitempty"`
	Columns      []Column `json:"columns"`
	Shares       []Share  `json:"shares,omitempty"`
}

// Column owns an ordered list of cards. Position is dense and zero-based
// within the board.
type Column struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// Card belongs to exactly one column at all times. Position is dense and
// zero-based within the owning column.
type Card struct {
	ID           string `json:"id"`
	ColumnID     string `json:"columnId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Position     int    `json:"position"`
	AssigneeID   string `json:"assigneeId,omitempty"`
	DueDate      string `json:"dueDate,omitempty"`
	CommentCount int    `json:"commentCount,omitempty"`
	LinkedNoteID string `json:"linkedNoteId,omitempty"`
}

// Share grants another user access to a board.
type Share struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// PresenceUser is the server's snapshot of one viewer of a board. Clients
// keep only the latest snapshot list and never merge deltas.
type PresenceUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ChatMessage is one entry in a board's chat transcript.
type ChatMessage struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
	Time     int64  `json:"time"`
}

// Comment is attached to a card's activity log.
type Comment struct {
	ID       string `json:"id"`
	CardID   string `json:"cardId"`
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
	Time     int64  `json:"time"`
}
