package entity

import "fmt"

// FieldState is the occupancy of a single board cell.
type FieldState uint8

const (
	Empty FieldState = iota
	Black
	White
)

func (that FieldState) String() string {
	switch that {
	case Empty:
		return "empty"
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return fmt.Sprintf("field(%d)", uint8(that))
	}
}

// IsStone reports whether the state is a player color.
func (that FieldState) IsStone() bool {
	return that == Black || that == White
}

// Opponent returns the other color. Empty stays Empty.
func (that FieldState) Opponent() FieldState {
	switch that {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// BoardField is one cell's occupancy at a moment in time.
type BoardField struct {
	Column int        `json:"column"`
	Row    int        `json:"row"`
	State  FieldState `json:"state"`
}

type Move struct {
	Column int        `json:"column"`
	Row    int        `json:"row"`
	Color  FieldState `json:"color"`
}

func (that Move) Field() BoardField {
	return BoardField{Column: that.Column, Row: that.Row, State: that.Color}
}
