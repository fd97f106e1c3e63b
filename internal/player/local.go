package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

var ErrNotArmed = errors.New("player is not waiting for a move")

// Local is a human at this machine. Clicks are accepted only between MakeMove and the next applied move.
type Local struct {
	base
	mover Mover

	mu    sync.Mutex
	armed bool
	epoch uint64
}

func NewLocal(name string, color entity.FieldState, mover Mover) *Local {
	return &Local{
		base:  base{name: name, color: color},
		mover: mover,
	}
}

func (that *Local) MakeMove(context.Context) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.armed = true
	that.epoch++
}

func (that *Local) ForceEndTurn() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.armed = false
	that.epoch++
}

func (that *Local) Armed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.armed
}

// Click submits a pointer click as a move. A rejected click re-arms the player
// unless the turn was ended in the meantime.
func (that *Local) Click(column, row int) (gomoku.Applied, error) {
	that.mu.Lock()
	if !that.armed {
		that.mu.Unlock()
		return gomoku.Applied{}, ErrNotArmed
	}
	that.armed = false
	epoch := that.epoch
	that.mu.Unlock()

	applied, err := that.mover.SubmitMove(column, row, that.color)
	if err != nil {
		that.mu.Lock()
		if that.epoch == epoch {
			that.armed = true
		}
		that.mu.Unlock()

		return gomoku.Applied{}, fmt.Errorf("failed to place stone: %w", err)
	}

	that.remember(applied.Move)

	return applied, nil
}
