package analytics

import (
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/entity"
)

type publisher interface {
	Publish(event GameEvent)
}

// Tracker turns controller notifications into move and game_end events for the tracked game.
type Tracker struct {
	publisher publisher

	mu      sync.Mutex
	gameID  string
	started time.Time
}

func NewTracker(publisher publisher) *Tracker {
	return &Tracker{publisher: publisher}
}

// Track attributes following events to gameID and restarts the game clock.
func (that *Tracker) Track(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.gameID = gameID
	that.started = time.Now()
}

func (that *Tracker) current() (string, time.Time) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.gameID, that.started
}

func (that *Tracker) OnCellChanged(field entity.BoardField) {
	if !field.State.IsStone() {
		return
	}

	gameID, _ := that.current()
	that.publisher.Publish(NewMoveEvent(gameID, field.State.String(), field.Column, field.Row))
}

func (that *Tracker) OnTurnChanged(entity.FieldState) {}

func (that *Tracker) OnOutcome(outcome entity.Outcome) {
	gameID, started := that.current()

	winner := ""
	if outcome.Kind == entity.OutcomeWin {
		winner = outcome.Winner.String()
	}

	that.publisher.Publish(NewGameEndEvent(gameID, winner, outcome.Kind == entity.OutcomeDraw, time.Since(started)))
}

func (that *Tracker) OnStatus(string) {}

func (that *Tracker) OnBoardReset(int) {}
