package entity

import (
	"errors"
	"fmt"
	"sync"
)

const (
	MinBoardSize = 5
	MaxBoardSize = 20
)

var ErrInvalidBoardSize = errors.New("invalid board size")

// Board is the N×N grid of cell states. It knows nothing about turns or players.
// Reads take a consistent snapshot even while another goroutine clears the grid.
type Board struct {
	mu     sync.RWMutex
	size   int
	cells  []FieldState
	filled int
}

func NewBoard(size int) (*Board, error) {
	if size < MinBoardSize || size > MaxBoardSize {
		return nil, fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidBoardSize, size, MinBoardSize, MaxBoardSize)
	}

	return &Board{
		size:  size,
		cells: make([]FieldState, size*size),
	}, nil
}

func (that *Board) Size() int {
	return that.size
}

func (that *Board) InBounds(column, row int) bool {
	return column >= 0 && column < that.size && row >= 0 && row < that.size
}

// Get returns the state at (column, row). Out-of-range cells read as Empty.
func (that *Board) Get(column, row int) FieldState {
	if !that.InBounds(column, row) {
		return Empty
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.cells[that.index(column, row)]
}

// Set writes state at (column, row) and returns the previous state.
// The second result is false when the coordinates are out of range; nothing is written then.
func (that *Board) Set(column, row int, state FieldState) (FieldState, bool) {
	if !that.InBounds(column, row) {
		return Empty, false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	i := that.index(column, row)
	previous := that.cells[i]
	that.cells[i] = state

	switch {
	case previous == Empty && state != Empty:
		that.filled++
	case previous != Empty && state == Empty:
		that.filled--
	}

	return previous, true
}

func (that *Board) Clear() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i := range that.cells {
		that.cells[i] = Empty
	}
	that.filled = 0
}

// Full reports whether every cell is occupied.
func (that *Board) Full() bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.filled == len(that.cells)
}

// Occupied returns the number of non-empty cells.
func (that *Board) Occupied() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.filled
}

// Snapshot returns every cell, row by row, then column by column.
func (that *Board) Snapshot() []BoardField {
	that.mu.RLock()
	defer that.mu.RUnlock()

	fields := make([]BoardField, 0, len(that.cells))
	for row := 0; row < that.size; row++ {
		for column := 0; column < that.size; column++ {
			fields = append(fields, BoardField{
				Column: column,
				Row:    row,
				State:  that.cells[that.index(column, row)],
			})
		}
	}

	return fields
}

func (that *Board) index(column, row int) int {
	return row*that.size + column
}
