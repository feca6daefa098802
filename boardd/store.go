// Package boardd is the development stand-in for the production board
// API: the external collaborator that owns persistence, enforces server
// side invariants and broadcasts realtime events. The engine is written
// and tested against it.
package boardd

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GitBakko/Notiq-sub001/domain"
)

// NotFoundError reports a missing board, column or card.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotEmptyError reports a refused delete of a column that owns cards.
type NotEmptyError struct {
	ColumnID string
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("column %s still has cards", e.ColumnID)
}

// MemStore holds boards in memory. All mutations renumber positions
// densely before returning; concurrent moves resolve last-write-wins.
type MemStore struct {
	mu     sync.Mutex
	boards map[string]*domain.Board
	chat   map[string][]domain.ChatMessage
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		boards: make(map[string]*domain.Board),
		chat:   make(map[string][]domain.ChatMessage),
	}
}

// PutBoard installs or replaces a board, normalizing positions. It
// returns the board ID, assigning a fresh one when the board has none.
func (s *MemStore) PutBoard(board *domain.Board) string {
	cp := board.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.RenumberColumns()
	for i := range cp.Columns {
		cp.Columns[i].BoardID = cp.ID
		cp.Columns[i].RenumberCards()
	}
	s.mu.Lock()
	s.boards[cp.ID] = cp
	s.mu.Unlock()
	return cp.ID
}

// GetBoard returns a copy of the board.
func (s *MemStore) GetBoard(boardID string) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return nil, &NotFoundError{Kind: "board", ID: boardID}
	}
	return board.Clone(), nil
}

// MoveCard applies an authoritative card move and returns the affected
// board id. Position is clamped; both columns come back dense.
func (s *MemStore) MoveCard(cardID, toColumnID string, position int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := s.boardOwningCard(cardID)
	if board == nil {
		return "", &NotFoundError{Kind: "card", ID: cardID}
	}
	dst := board.FindColumn(toColumnID)
	if dst == nil || dst.BoardID != board.ID {
		return "", &NotFoundError{Kind: "column", ID: toColumnID}
	}
	_, src := board.FindCard(cardID)
	card, _ := src.RemoveCard(cardID)
	dst.InsertCard(card, position)
	return board.ID, nil
}

// ReorderColumns applies an authoritative column order and returns the
// affected board id.
func (s *MemStore) ReorderColumns(orderedColumnIDs []string) (string, error) {
	if len(orderedColumnIDs) == 0 {
		return "", &NotFoundError{Kind: "column", ID: ""}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, board := range s.boards {
		if board.FindColumn(orderedColumnIDs[0]) != nil {
			board.ReorderColumns(orderedColumnIDs)
			return board.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "column", ID: orderedColumnIDs[0]}
}

// CreateCard appends a card to the column and returns the stored copy.
func (s *MemStore) CreateCard(boardID, columnID, title, description string) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return domain.Card{}, &NotFoundError{Kind: "board", ID: boardID}
	}
	col := board.FindColumn(columnID)
	if col == nil {
		return domain.Card{}, &NotFoundError{Kind: "column", ID: columnID}
	}
	card := domain.Card{
		ID:          uuid.NewString(),
		ColumnID:    columnID,
		Title:       title,
		Description: description,
	}
	col.InsertCard(card, len(col.Cards))
	return col.Cards[len(col.Cards)-1], nil
}

// UpdateCard patches title/description and returns the stored copy.
func (s *MemStore) UpdateCard(cardID string, title, description *string) (domain.Card, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := s.boardOwningCard(cardID)
	if board == nil {
		return domain.Card{}, "", &NotFoundError{Kind: "card", ID: cardID}
	}
	card, _ := board.FindCard(cardID)
	if title != nil {
		card.Title = *title
	}
	if description != nil {
		card.Description = *description
	}
	return *card, board.ID, nil
}

// DeleteCard removes a card and renumbers its column.
func (s *MemStore) DeleteCard(cardID string) (domain.Card, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := s.boardOwningCard(cardID)
	if board == nil {
		return domain.Card{}, "", &NotFoundError{Kind: "card", ID: cardID}
	}
	_, col := board.FindCard(cardID)
	card, _ := col.RemoveCard(cardID)
	return card, board.ID, nil
}

// CreateColumn appends an empty column to the board.
func (s *MemStore) CreateColumn(boardID, title string) (domain.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return domain.Column{}, &NotFoundError{Kind: "board", ID: boardID}
	}
	col := domain.Column{
		ID:      uuid.NewString(),
		BoardID: boardID,
		Title:   title,
	}
	board.Columns = append(board.Columns, col)
	board.RenumberColumns()
	return board.Columns[len(board.Columns)-1], nil
}

// RenameColumn updates a column title.
func (s *MemStore) RenameColumn(columnID, title string) (domain.Column, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, board := range s.boards {
		if col := board.FindColumn(columnID); col != nil {
			col.Title = title
			return *col, board.ID, nil
		}
	}
	return domain.Column{}, "", &NotFoundError{Kind: "column", ID: columnID}
}

// DeleteColumn removes an empty column. A column owning any card is
// refused with NotEmptyError.
func (s *MemStore) DeleteColumn(columnID string) (domain.Column, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, board := range s.boards {
		for i := range board.Columns {
			if board.Columns[i].ID != columnID {
				continue
			}
			if len(board.Columns[i].Cards) > 0 {
				return domain.Column{}, "", &NotEmptyError{ColumnID: columnID}
			}
			col := board.Columns[i]
			board.Columns = append(board.Columns[:i], board.Columns[i+1:]...)
			board.RenumberColumns()
			return col, board.ID, nil
		}
	}
	return domain.Column{}, "", &NotFoundError{Kind: "column", ID: columnID}
}

// AddComment appends to a card's activity log and bumps its counter.
func (s *MemStore) AddComment(cardID, authorID, body string) (domain.Comment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := s.boardOwningCard(cardID)
	if board == nil {
		return domain.Comment{}, "", &NotFoundError{Kind: "card", ID: cardID}
	}
	card, _ := board.FindCard(cardID)
	card.CommentCount++
	comment := domain.Comment{
		ID:       uuid.NewString(),
		CardID:   cardID,
		AuthorID: authorID,
		Body:     body,
		Time:     time.Now().UnixMilli(),
	}
	return comment, board.ID, nil
}

// AddChatMessage appends to the board chat transcript.
func (s *MemStore) AddChatMessage(boardID, authorID, body string) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[boardID]; !ok {
		return domain.ChatMessage{}, &NotFoundError{Kind: "board", ID: boardID}
	}
	msg := domain.ChatMessage{
		ID:       uuid.NewString(),
		BoardID:  boardID,
		AuthorID: authorID,
		Body:     body,
		Time:     time.Now().UnixMilli(),
	}
	s.chat[boardID] = append(s.chat[boardID], msg)
	return msg, nil
}

// ChatMessages returns the transcript for a board.
func (s *MemStore) ChatMessages(boardID string) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.chat[boardID]...)
}

func (s *MemStore) boardOwningCard(cardID string) *domain.Board {
	for _, board := range s.boards {
		if card, _ := board.FindCard(cardID); card != nil {
			return board
		}
	}
	return nil
}
