package geom

import "testing"

// fixedProvider serves a static layout: columns side by side, cards
// stacked vertically inside them.
type fixedProvider struct {
	columns []Bounds
	cards   map[string][]Bounds
}

func (f *fixedProvider) ColumnBounds() []Bounds              { return f.columns }
func (f *fixedProvider) CardBounds(columnID string) []Bounds { return f.cards[columnID] }

// threeColumns lays out colA (two cards), colB (empty), colC (one card).
func threeColumns() *fixedProvider {
	return &fixedProvider{
		columns: []Bounds{
			{ID: "colA", Rect: Rect{X: 0, Y: 0, Width: 100, Height: 400}},
			{ID: "colB", Rect: Rect{X: 150, Y: 0, Width: 100, Height: 400}},
			{ID: "colC", Rect: Rect{X: 300, Y: 0, Width: 100, Height: 400}},
		},
		cards: map[string][]Bounds{
			"colA": {
				{ID: "c1", Rect: Rect{X: 10, Y: 10, Width: 80, Height: 60}},
				{ID: "c2", Rect: Rect{X: 10, Y: 80, Width: 80, Height: 60}},
			},
			"colC": {
				{ID: "c3", Rect: Rect{X: 310, Y: 10, Width: 80, Height: 60}},
			},
		},
	}
}

func TestResolveCardInsideEmptyColumn(t *testing.T) {
	r := NewResolver(threeColumns())
	target, ok := r.ResolveCard(Point{X: 200, Y: 200}, "c1")
	if !ok {
		t.Fatal("no target resolved")
	}
	if target.ColumnID != "colB" || target.Index != 0 {
		t.Fatalf("want colB/0, got %s/%d", target.ColumnID, target.Index)
	}
}

func TestResolveCardNearestCardAboveCenter(t *testing.T) {
	r := NewResolver(threeColumns())
	// Inside colA, just above c2's center: insert before c2.
	target, ok := r.ResolveCard(Point{X: 50, Y: 95}, "c3")
	if !ok {
		t.Fatal("no target resolved")
	}
	if target.ColumnID != "colA" || target.Index != 1 {
		t.Fatalf("want colA/1, got %s/%d", target.ColumnID, target.Index)
	}
}

func TestResolveCardBelowNearestCenter(t *testing.T) {
	r := NewResolver(threeColumns())
	// Inside colA, below c2's center: insert after c2.
	target, ok := r.ResolveCard(Point{X: 50, Y: 130}, "c3")
	if !ok {
		t.Fatal("no target resolved")
	}
	if target.ColumnID != "colA" || target.Index != 2 {
		t.Fatalf("want colA/2, got %s/%d", target.ColumnID, target.Index)
	}
}

func TestResolveCardExcludesDraggedCardFromIndex(t *testing.T) {
	r := NewResolver(threeColumns())
	// Dragging c1 within colA near c2: index is relative to the list
	// without c1, so c2 occupies slot 0.
	target, ok := r.ResolveCard(Point{X: 50, Y: 95}, "c1")
	if !ok {
		t.Fatal("no target resolved")
	}
	if target.ColumnID != "colA" || target.Index != 0 {
		t.Fatalf("want colA/0, got %s/%d", target.ColumnID, target.Index)
	}
}

func TestResolveCardInGapFallsBackToNearest(t *testing.T) {
	r := NewResolver(threeColumns())
	// Between colA and colB, nearer colB.
	target, ok := r.ResolveCard(Point{X: 140, Y: 200}, "c1")
	if !ok {
		t.Fatal("gap drag must still resolve a target")
	}
	if target.ColumnID != "colB" {
		t.Fatalf("want fallback to colB, got %s", target.ColumnID)
	}
}

func TestResolveCardNoColumns(t *testing.T) {
	r := NewResolver(&fixedProvider{})
	if _, ok := r.ResolveCard(Point{X: 0, Y: 0}, "c1"); ok {
		t.Fatal("expected no target on an empty board")
	}
}

func TestResolveColumnIgnoresCards(t *testing.T) {
	r := NewResolver(threeColumns())
	// Directly over c3 inside colC, dragging colA: target is colC, the
	// nearest other column, never a card.
	id, ok := r.ResolveColumn(Point{X: 350, Y: 40}, "colA")
	if !ok || id != "colC" {
		t.Fatalf("want colC, got %q ok=%v", id, ok)
	}
}

func TestResolveColumnExcludesSelf(t *testing.T) {
	r := NewResolver(&fixedProvider{columns: []Bounds{
		{ID: "only", Rect: Rect{X: 0, Y: 0, Width: 100, Height: 100}},
	}})
	if _, ok := r.ResolveColumn(Point{X: 50, Y: 50}, "only"); ok {
		t.Fatal("single-column board has no column drop target")
	}
}
