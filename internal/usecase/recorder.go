package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

const storeTimeout = 3 * time.Second

type sessionRepo interface {
	Save(ctx context.Context, snapshot *entity.SessionSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.SessionSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type snapshotter interface {
	Snapshot() gomoku.Snapshot
	Rules() gomoku.Rules
}

// Recorder keeps the snapshot store in sync with the game in progress.
// A finished or reset game is removed, so only live games are ever stored.
type Recorder struct {
	logger *slog.Logger
	repo   sessionRepo
	game   snapshotter

	mu sync.Mutex
	id string
}

func NewRecorder(logger *slog.Logger, repo sessionRepo, game snapshotter) *Recorder {
	return &Recorder{
		logger: logger.With("component", "recorder"),
		repo:   repo,
		game:   game,
	}
}

// Track stores following moves under id.
func (that *Recorder) Track(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.id = id
}

func (that *Recorder) trackedID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.id
}

func (that *Recorder) OnCellChanged(field entity.BoardField) {
	if !field.State.IsStone() {
		return
	}

	id := that.trackedID()
	if id == "" {
		return
	}

	log := that.logger.With("method", "OnCellChanged")

	snapshot := that.game.Snapshot()
	if snapshot.Status.IsFinished() {
		return
	}

	rules := that.game.Rules()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := that.repo.Save(ctx, &entity.SessionSnapshot{
		ID:          id,
		BoardSize:   snapshot.Size,
		WinLength:   rules.WinLength,
		ExactLength: rules.ExactLength,
		Moves:       snapshot.History,
		Turn:        snapshot.Turn,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to save session", "id", id, "error", err)
	}
}

func (that *Recorder) OnTurnChanged(entity.FieldState) {}

func (that *Recorder) OnOutcome(outcome entity.Outcome) {
	if outcome.IsTerminal() {
		that.forget()
	}
}

func (that *Recorder) OnStatus(string) {}

func (that *Recorder) OnBoardReset(int) {
	that.forget()
}

func (that *Recorder) forget() {
	id := that.trackedID()
	if id == "" {
		return
	}

	log := that.logger.With("method", "forget")

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := that.repo.DeleteByID(ctx, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		log.Error("failed to delete session", "id", id, "error", err)
	}
}
