package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// Strategy picks a move for the computer player.
type Strategy interface {
	NextMove(ctx context.Context, snapshot gomoku.Snapshot) (column, row int, err error)
}

// Computer asks a Strategy for a move on its own goroutine.
type Computer struct {
	base
	logger   *slog.Logger
	mover    Mover
	strategy Strategy

	mu      sync.Mutex
	cancel  context.CancelFunc
	running chan struct{}
	wg      sync.WaitGroup
}

func NewComputer(logger *slog.Logger, name string, color entity.FieldState, mover Mover, strategy Strategy) *Computer {
	return &Computer{
		base:     base{name: name, color: color},
		logger:   logger.With("component", "computer_player"),
		mover:    mover,
		strategy: strategy,
	}
}

func (that *Computer) MakeMove(ctx context.Context) {
	that.stop()

	ctx, cancel := context.WithCancel(ctx)
	running := make(chan struct{})

	that.mu.Lock()
	that.cancel = cancel
	that.running = running
	that.mu.Unlock()

	that.wg.Add(1)
	go func() {
		defer that.wg.Done()
		defer close(running)
		defer cancel()

		that.play(ctx)
	}()
}

func (that *Computer) play(ctx context.Context) {
	log := that.logger.With("method", "play")

	snapshot := that.mover.Snapshot()
	if snapshot.Turn != that.color || !snapshot.Status.IsOngoing() {
		return
	}

	column, row, err := that.strategy.NextMove(ctx, snapshot)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("strategy failed", "error", err)
		}

		return
	}

	if ctx.Err() != nil {
		return
	}

	applied, err := that.mover.SubmitMove(column, row, that.color)
	if err != nil {
		log.Warn("move rejected", "column", column, "row", row, "error", err)
		return
	}

	that.remember(applied.Move)
}

// ForceEndTurn cancels the pending computation and returns once it has exited,
// so no move of the interrupted turn reaches the board afterwards.
func (that *Computer) ForceEndTurn() {
	that.stop()
}

func (that *Computer) stop() {
	that.mu.Lock()
	cancel, running := that.cancel, that.running
	that.cancel, that.running = nil, nil
	that.mu.Unlock()

	if cancel != nil {
		cancel()
		<-running
	}
}

// Wait blocks until no move is being computed.
func (that *Computer) Wait() {
	that.wg.Wait()
}

// RandomStrategy plays a uniformly random empty cell.
type RandomStrategy struct{}

func (RandomStrategy) NextMove(ctx context.Context, snapshot gomoku.Snapshot) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("move canceled: %w", err)
	}

	available := snapshot.Empty()
	if len(available) == 0 {
		return 0, 0, ErrNoAvailableMoves
	}

	chosen := available[rand.Intn(len(available))] //nolint: gosec // it's ok

	return chosen.Column, chosen.Row, nil
}
