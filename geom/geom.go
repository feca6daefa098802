// Package geom resolves drop targets from container geometry. It is kept
// independent of any rendering surface: callers supply measured bounds
// through the Provider interface and the resolver only does arithmetic.
package geom

import "math"

// Point is a position in the board's coordinate space.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func distance(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Hypot(dx, dy)
}

// Bounds is the measured box of one droppable container.
type Bounds struct {
	ID   string
	Rect Rect
}

// Provider supplies the current measured geometry of a board's droppable
// containers. Implementations read from whatever surface renders the
// board; tests use fixed rectangles.
type Provider interface {
	// ColumnBounds returns one entry per column, in display order.
	ColumnBounds() []Bounds
	// CardBounds returns one entry per card of the column, in display order.
	CardBounds(columnID string) []Bounds
}
