package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
)

// Status is the phase of the turn controller.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

func (that Status) IsFinished() bool {
	return that == StatusFinished
}

func (that Status) IsOngoing() bool {
	return that == StatusOngoing
}

func (that Status) IsWaiting() bool {
	return that == StatusWaiting
}

// ConfirmOngoing returns nil only while moves are accepted.
func (that Status) ConfirmOngoing() error {
	switch that {
	case StatusOngoing:
		return nil
	case StatusWaiting:
		return fmt.Errorf("%w: game is not started", apperror.ErrGameNotInProgress)
	case StatusFinished:
		return fmt.Errorf("%w: game is already finished", apperror.ErrGameNotInProgress)
	default:
		return fmt.Errorf("%w: unknown status %q", apperror.ErrGameNotInProgress, string(that))
	}
}

type OutcomeKind uint8

const (
	OutcomeOngoing OutcomeKind = iota
	OutcomeWin
	OutcomeDraw
)

// Outcome is the result of the game after the most recent move.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Winner FieldState  `json:"winner,omitempty"`
}

func Ongoing() Outcome {
	return Outcome{Kind: OutcomeOngoing}
}

func Win(color FieldState) Outcome {
	return Outcome{Kind: OutcomeWin, Winner: color}
}

func Draw() Outcome {
	return Outcome{Kind: OutcomeDraw}
}

func (that Outcome) IsTerminal() bool {
	return that.Kind == OutcomeWin || that.Kind == OutcomeDraw
}

func (that Outcome) String() string {
	switch that.Kind {
	case OutcomeWin:
		return that.Winner.String() + " wins"
	case OutcomeDraw:
		return "draw"
	default:
		return "ongoing"
	}
}

type GameStateKind uint8

const (
	StateWait GameStateKind = iota
	StatePlaying
	StateRestart
)

func (that GameStateKind) String() string {
	switch that {
	case StateWait:
		return "wait"
	case StatePlaying:
		return "playing"
	case StateRestart:
		return "restart"
	default:
		return fmt.Sprintf("state(%d)", uint8(that))
	}
}

// GameState is the network-visible state exchanged between peers.
// ServerAddress is only meaningful for StateRestart.
type GameState struct {
	Kind          GameStateKind
	ServerAddress string
}

// SessionSnapshot is the in-progress game as kept in the snapshot store.
type SessionSnapshot struct {
	ID          string     `json:"id"`
	BoardSize   int        `json:"board_size"`
	WinLength   int        `json:"win_length"`
	ExactLength bool       `json:"exact_length,omitempty"`
	Moves       []Move     `json:"moves"`
	Turn        FieldState `json:"turn"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
