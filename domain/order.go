package domain

// Clone returns a deep copy of the board. Mutating the copy never touches
// the original's column or card slices.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Columns = make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		cc := col
		cc.Cards = append([]Card(nil), col.Cards...)
		cp.Columns[i] = cc
	}
	cp.Shares = append([]Share(nil), b.Shares...)
	return &cp
}

// FindColumn returns a pointer into the board's column slice, or nil.
func (b *Board) FindColumn(columnID string) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return &b.Columns[i]
		}
	}
	return nil
}

// FindCard locates a card anywhere on the board and returns it together
// with its owning column, or nil/nil when absent.
func (b *Board) FindCard(cardID string) (*Card, *Column) {
	for i := range b.Columns {
		col := &b.Columns[i]
		for j := range col.Cards {
			if col.Cards[j].ID == cardID {
				return &col.Cards[j], col
			}
		}
	}
	return nil, nil
}

// ColumnOrder returns the board's column ids in display order.
func (b *Board) ColumnOrder() []string {
	ids := make([]string, len(b.Columns))
	for i, col := range b.Columns {
		ids[i] = col.ID
	}
	return ids
}

// RenumberCards rewrites card positions to be dense and zero-based and
// stamps the owning column id onto every card.
func (c *Column) RenumberCards() {
	for i := range c.Cards {
		c.Cards[i].Position = i
		c.Cards[i].ColumnID = c.ID
	}
}

// RenumberColumns rewrites column positions to match slice order.
func (b *Board) RenumberColumns() {
	for i := range b.Columns {
		b.Columns[i].Position = i
	}
}

// RemoveCard deletes the card from the column and renumbers the remainder.
// It returns the removed card and false when the card was not present.
func (c *Column) RemoveCard(cardID string) (Card, bool) {
	for i := range c.Cards {
		if c.Cards[i].ID == cardID {
			card := c.Cards[i]
			c.Cards = append(c.Cards[:i], c.Cards[i+1:]...)
			c.RenumberCards()
			return card, true
		}
	}
	return Card{}, false
}

// InsertCard places the card at index, clamping to the valid range, and
// renumbers the column.
func (c *Column) InsertCard(card Card, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(c.Cards) {
		index = len(c.Cards)
	}
	c.Cards = append(c.Cards, Card{})
	copy(c.Cards[index+1:], c.Cards[index:])
	c.Cards[index] = card
	c.RenumberCards()
}

// ReorderColumns rearranges the board's columns to match orderedIDs and
// renumbers positions. Ids not present on the board are ignored; columns
// missing from orderedIDs keep their relative order at the end.
func (b *Board) ReorderColumns(orderedIDs []string) {
	index := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		index[id] = i
	}
	reordered := make([]Column, 0, len(b.Columns))
	for _, id := range orderedIDs {
		if col := b.FindColumn(id); col != nil {
			reordered = append(reordered, *col)
		}
	}
	for _, col := range b.Columns {
		if _, ok := index[col.ID]; !ok {
			reordered = append(reordered, col)
		}
	}
	b.Columns = reordered
	b.RenumberColumns()
}

// Equal reports value equality of two boards, including card order.
func (b *Board) Equal(other *Board) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.ID != other.ID || b.Title != other.Title || len(b.Columns) != len(other.Columns) {
		return false
	}
	for i := range b.Columns {
		a, o := b.Columns[i], other.Columns[i]
		if a.ID != o.ID || a.Title != o.Title || a.Position != o.Position || len(a.Cards) != len(o.Cards) {
			return false
		}
		for j := range a.Cards {
			if a.Cards[j] != o.Cards[j] {
				return false
			}
		}
	}
	return true
}
