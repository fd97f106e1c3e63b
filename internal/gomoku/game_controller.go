package gomoku

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
)

var ErrInvalidColor = errors.New("color must be black or white")

// Applied is the result of an accepted move.
type Applied struct {
	Move    entity.Move
	Outcome entity.Outcome
	// Turn is the color to move next. It stays unchanged once the outcome is terminal.
	Turn entity.FieldState
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Size      int
	WinLength int
	Fields    []entity.BoardField
	Turn      entity.FieldState
	Status    entity.Status
	Outcome   entity.Outcome
	LastMove  *entity.Move
	History   []entity.Move
}

// Empty returns the coordinates of every unoccupied cell.
func (that Snapshot) Empty() []entity.BoardField {
	fields := make([]entity.BoardField, 0, len(that.Fields))
	for _, field := range that.Fields {
		if field.State == entity.Empty {
			fields = append(fields, field)
		}
	}

	return fields
}

// GameController is the only writer of the board and the turn.
// Every mutation happens under one mutex, so validation and application of a move are atomic.
type GameController struct {
	logger *slog.Logger

	mu      sync.Mutex
	rules   Rules
	board   *entity.Board
	status  entity.Status
	turn    entity.FieldState
	outcome entity.Outcome
	aborted bool
	history []entity.Move

	events *dispatcher
}

func NewGameController(logger *slog.Logger, rules Rules) *GameController {
	if rules.WinLength <= 0 {
		rules.WinLength = DefaultWinLength
	}

	return &GameController{
		logger:  logger.With("component", "game_controller"),
		rules:   rules,
		status:  entity.StatusWaiting,
		outcome: entity.Ongoing(),
		events:  newDispatcher(),
	}
}

func (that *GameController) Subscribe(listener Listener) {
	that.events.subscribe(listener)
}

// StartGame replaces the board with an empty one of the given size and lets starting move first.
func (that *GameController) StartGame(size int, starting entity.FieldState) error {
	log := that.logger.With("method", "StartGame")

	if !starting.IsStone() {
		return fmt.Errorf("%w: got %s", ErrInvalidColor, starting)
	}

	board, err := entity.NewBoard(size)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.board = board
	that.status = entity.StatusOngoing
	that.turn = starting
	that.outcome = entity.Ongoing()
	that.aborted = false
	that.history = nil

	that.events.emit(func(l Listener) { l.OnBoardReset(size) })
	that.events.emit(func(l Listener) { l.OnTurnChanged(starting) })

	log.Debug("game started", "size", size, "starting", starting.String())

	return nil
}

// SubmitMove validates and applies a move. A rejected move leaves the state untouched.
func (that *GameController) SubmitMove(column, row int, color entity.FieldState) (Applied, error) {
	log := that.logger.With("method", "SubmitMove")

	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.validateMove(column, row, color); err != nil {
		log.Debug("move rejected", "column", column, "row", row, "color", color.String(), "error", err)

		return Applied{}, fmt.Errorf("invalid move: %w", err)
	}

	move := entity.Move{Column: column, Row: row, Color: color}
	that.board.Set(column, row, color)
	that.history = append(that.history, move)

	field := move.Field()
	that.events.emit(func(l Listener) { l.OnCellChanged(field) })

	that.updateGameStatus(move)

	return Applied{Move: move, Outcome: that.outcome, Turn: that.turn}, nil
}

// validateMove checks phase, bounds, turn and occupancy, in that order.
func (that *GameController) validateMove(column, row int, color entity.FieldState) error {
	if that.aborted {
		return fmt.Errorf("%w: turn was ended", apperror.ErrGameNotInProgress)
	}

	if err := that.status.ConfirmOngoing(); err != nil {
		return err
	}

	if !that.board.InBounds(column, row) {
		return fmt.Errorf("%w: (%d, %d) on %dx%d", apperror.ErrOutOfBounds, column, row, that.board.Size(), that.board.Size())
	}

	if color != that.turn {
		return apperror.ErrNotYourTurn
	}

	if that.board.Get(column, row) != entity.Empty {
		return apperror.ErrCellOccupied
	}

	return nil
}

func (that *GameController) updateGameStatus(move entity.Move) {
	outcome := Evaluate(that.board, move, that.rules)
	that.outcome = outcome

	if outcome.IsTerminal() {
		that.status = entity.StatusFinished
		that.events.emit(func(l Listener) { l.OnOutcome(outcome) })

		that.logger.Info("game finished", "outcome", outcome.String(), "moves", len(that.history))

		return
	}

	that.turn = that.turn.Opponent()

	next := that.turn
	that.events.emit(func(l Listener) { l.OnTurnChanged(next) })
}

// ForceEndTurn marks the pending turn dead. Every move submitted afterwards is rejected
// with ErrGameNotInProgress until the next StartGame or Reset.
func (that *GameController) ForceEndTurn() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status.IsOngoing() && !that.aborted {
		that.aborted = true
		that.logger.Debug("turn force-ended", "turn", that.turn.String())
	}
}

// Reset clears the board and returns to the waiting phase.
func (that *GameController) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	size := 0
	if that.board != nil {
		that.board.Clear()
		size = that.board.Size()
	}

	that.status = entity.StatusWaiting
	that.turn = entity.Empty
	that.outcome = entity.Ongoing()
	that.aborted = false
	that.history = nil

	that.events.emit(func(l Listener) { l.OnBoardReset(size) })
	that.events.emit(func(l Listener) { l.OnTurnChanged(entity.Empty) })
}

// SetRules takes effect from the next evaluated move.
func (that *GameController) SetRules(rules Rules) {
	if rules.WinLength <= 0 {
		rules.WinLength = DefaultWinLength
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.rules = rules
}

func (that *GameController) Rules() Rules {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rules
}

func (that *GameController) CurrentOutcome() entity.Outcome {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.outcome
}

func (that *GameController) CurrentTurn() entity.FieldState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.turn
}

func (that *GameController) Status() entity.Status {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

// Size returns the current board size, or 0 before the first game.
func (that *GameController) Size() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.board == nil {
		return 0
	}

	return that.board.Size()
}

func (that *GameController) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot := Snapshot{
		WinLength: that.rules.WinLength,
		Turn:      that.turn,
		Status:    that.status,
		Outcome:   that.outcome,
		History:   append([]entity.Move(nil), that.history...),
	}

	if that.board != nil {
		snapshot.Size = that.board.Size()
		snapshot.Fields = that.board.Snapshot()
	}

	if n := len(that.history); n > 0 {
		last := that.history[n-1]
		snapshot.LastMove = &last
	}

	return snapshot
}

// Notify forwards a status line to every listener.
func (that *GameController) Notify(text string) {
	that.events.emit(func(l Listener) { l.OnStatus(text) })
}

// Close flushes pending events and stops delivery. It must not be called from a listener.
func (that *GameController) Close() {
	that.events.close()
}
