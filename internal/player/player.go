package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

// Player feeds moves of one color into the game.
type Player interface {
	Color() entity.FieldState
	Name() string
	// MakeMove is called when this player's turn starts. It must not block.
	MakeMove(ctx context.Context)
	// ForceEndTurn abandons a pending move.
	ForceEndTurn()
	LastMove() (entity.Move, bool)
}

// Mover is the part of the game controller players drive.
type Mover interface {
	SubmitMove(column, row int, color entity.FieldState) (gomoku.Applied, error)
	Snapshot() gomoku.Snapshot
}

type base struct {
	name  string
	color entity.FieldState

	lastMu  sync.Mutex
	last    entity.Move
	hasLast bool
}

func (that *base) Color() entity.FieldState {
	return that.color
}

func (that *base) Name() string {
	return fmt.Sprintf("%s (%s)", that.name, that.color)
}

func (that *base) LastMove() (entity.Move, bool) {
	that.lastMu.Lock()
	defer that.lastMu.Unlock()

	return that.last, that.hasLast
}

func (that *base) remember(move entity.Move) {
	that.lastMu.Lock()
	defer that.lastMu.Unlock()

	that.last = move
	that.hasLast = true
}

// Forget clears the last move, for a new game.
func (that *base) Forget() {
	that.lastMu.Lock()
	defer that.lastMu.Unlock()

	that.last = entity.Move{}
	that.hasLast = false
}
