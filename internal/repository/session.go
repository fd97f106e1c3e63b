package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
)

var ErrSessionNotFound = fmt.Errorf("session %w", apperror.ErrNotFound)

const sessionKeyPrefix = "session:"

// SessionRepository keeps the snapshot of a game in progress.
type SessionRepository interface {
	Save(ctx context.Context, snapshot *entity.SessionSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.SessionSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbSession struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository stores snapshots that expire after ttl of inactivity. Zero keeps them forever.
func NewSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &dbSession{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbSession) Save(ctx context.Context, snapshot *entity.SessionSnapshot) error {
	sessionJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	if err = that.client.Set(ctx, sessionKeyPrefix+snapshot.ID, sessionJSON, that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.SessionSnapshot, error) {
	response, err := that.client.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return &entity.SessionSnapshot{}, ErrSessionNotFound
	}

	if err != nil {
		return &entity.SessionSnapshot{}, fmt.Errorf("failed to get session by id: %w", err)
	}

	var snapshot entity.SessionSnapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return &entity.SessionSnapshot{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &snapshot, nil
}

func (that *dbSession) DeleteByID(ctx context.Context, id string) error {
	deleted, err := that.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session by id: %w", err)
	}

	if deleted == 0 {
		return ErrSessionNotFound
	}

	return nil
}
