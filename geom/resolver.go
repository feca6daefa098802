package geom

// CardTarget is the resolved destination for a card drag.
type CardTarget struct {
	ColumnID string
	// Index is the insertion index within the target column's card list.
	Index int
}

// Resolver decides drop targets for in-progress drags.
//
// Naive nearest-center collision makes cards snap to far-away columns when
// dragged through the gaps between containers, and misbehaves on empty
// columns. The resolver therefore tests geometric containment first and
// only refines by proximity inside the containing column; nearest-anything
// is kept as a last resort so a drag never has zero targets.
type Resolver struct {
	provider Provider
}

// NewResolver creates a resolver reading geometry from provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// ResolveColumn returns the nearest other column for a column drag.
// Cards are never collision targets for column drags. ok is false when
// the board has no other column.
func (r *Resolver) ResolveColumn(p Point, draggedColumnID string) (string, bool) {
	best := ""
	bestDist := 0.0
	for _, col := range r.provider.ColumnBounds() {
		if col.ID == draggedColumnID {
			continue
		}
		d := distance(p, col.Rect.Center())
		if best == "" || d < bestDist {
			best, bestDist = col.ID, d
		}
	}
	return best, best != ""
}

// ResolveCard returns the column and insertion index for a card drag.
// ok is false only when the board has no columns at all.
func (r *Resolver) ResolveCard(p Point, draggedCardID string) (CardTarget, bool) {
	columns := r.provider.ColumnBounds()
	if len(columns) == 0 {
		return CardTarget{}, false
	}

	// Phase 1: containment. A pointer inside a column can only target
	// that column.
	for _, col := range columns {
		if col.Rect.Contains(p) {
			return r.targetWithin(p, col.ID, draggedCardID), true
		}
	}

	// Phase 2: the pointer is over a gap. Fall back to the nearest
	// container of any kind so the drag still has a target.
	bestCol := ""
	bestDist := 0.0
	for _, col := range columns {
		d := distance(p, col.Rect.Center())
		for _, card := range r.provider.CardBounds(col.ID) {
			if card.ID == draggedCardID {
				continue
			}
			if cd := distance(p, card.Rect.Center()); cd < d {
				d = cd
			}
		}
		if bestCol == "" || d < bestDist {
			bestCol, bestDist = col.ID, d
		}
	}
	return r.targetWithin(p, bestCol, draggedCardID), true
}

// targetWithin refines a card target inside one column by proximity to
// that column's cards. An empty column (or one holding only the dragged
// card) targets the append position.
func (r *Resolver) targetWithin(p Point, columnID, draggedCardID string) CardTarget {
	cards := r.provider.CardBounds(columnID)
	nearest := -1
	nearestDist := 0.0
	slot := 0
	others := 0
	for i, card := range cards {
		if card.ID == draggedCardID {
			continue
		}
		others++
		d := distance(p, card.Rect.Center())
		if nearest < 0 || d < nearestDist {
			nearest, nearestDist = i, d
			slot = others - 1
			if p.Y > card.Rect.Center().Y {
				slot = others
			}
		}
	}
	if nearest < 0 {
		return CardTarget{ColumnID: columnID, Index: 0}
	}
	return CardTarget{ColumnID: columnID, Index: slot}
}
