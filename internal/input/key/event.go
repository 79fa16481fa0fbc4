package key

import (
	"fmt"
	"time"
)

// Position is a (row, col) coordinate in the key matrix.
type Position struct {
	Row uint8
	Col uint8
}

// Pos is shorthand for Position{Row: row, Col: col}.
func Pos(row, col uint8) Position {
	return Position{Row: row, Col: col}
}

// String returns "(row,col)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Edge is a debounced level transition.
type Edge uint8

const (
	// Released means the key went from held to up.
	Released Edge = iota
	// Pressed means the key went from up to held.
	Pressed
)

// String returns "pressed" or "released".
func (e Edge) String() string {
	if e == Pressed {
		return "pressed"
	}
	return "released"
}

// Event is a stable edge at a matrix position.
type Event struct {
	Position Position
	Edge     Edge

	// Timestamp is the scan time the edge was confirmed.
	Timestamp time.Time
}

// NewEvent creates an event.
func NewEvent(pos Position, edge Edge, at time.Time) Event {
	return Event{Position: pos, Edge: edge, Timestamp: at}
}

// IsPress returns true for Pressed edges.
func (e Event) IsPress() bool {
	return e.Edge == Pressed
}

// String returns e.g. "(0,1) pressed".
func (e Event) String() string {
	return e.Position.String() + " " + e.Edge.String()
}
