package player

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

// Remote is the peer on the other end of a network session. Its moves arrive as MOVE commands.
type Remote struct {
	base
	mover Mover
}

func NewRemote(name string, color entity.FieldState, mover Mover) *Remote {
	return &Remote{
		base:  base{name: name, color: color},
		mover: mover,
	}
}

func (that *Remote) MakeMove(context.Context) {}

func (that *Remote) ForceEndTurn() {}

// Apply submits a move received from the peer.
func (that *Remote) Apply(column, row int) (gomoku.Applied, error) {
	applied, err := that.mover.SubmitMove(column, row, that.color)
	if err != nil {
		return gomoku.Applied{}, fmt.Errorf("remote move rejected: %w", err)
	}

	that.remember(applied.Move)

	return applied, nil
}
