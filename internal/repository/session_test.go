package repository

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *entity.SessionSnapshot {
	return &entity.SessionSnapshot{
		ID:        "123",
		BoardSize: 15,
		WinLength: 5,
		Moves: []entity.Move{
			{Column: 7, Row: 7, Color: entity.Black},
			{Column: 0, Row: 0, Color: entity.White},
		},
		Turn:      entity.Black,
		UpdatedAt: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func TestSessionRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	sessionRepo := NewSessionRepository(st.Storage, time.Minute)

	// Given: a snapshot of a game in progress
	snapshot := testSnapshot()

	// When: Save is called
	err := sessionRepo.Save(ctx, snapshot)

	// Then: no error should be returned, and the key expires
	require.NoError(t, err)

	ttl, err := st.Storage.TTL(ctx, sessionKeyPrefix+snapshot.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSessionRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage, 0)

		// Given: a stored snapshot
		snapshot := testSnapshot()
		require.NoError(t, sessionRepo.Save(ctx, snapshot))

		// When: GetByID is called with the existing ID
		retrieved, err := sessionRepo.GetByID(ctx, snapshot.ID)

		// Then: the retrieved snapshot should match the saved one
		require.NoError(t, err)
		require.Equal(t, snapshot, retrieved)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage, 0)

		// When: GetByID is called with a non-existent ID
		retrieved, err := sessionRepo.GetByID(ctx, "9999999")

		// Then: a not found error should be returned
		require.ErrorIs(t, err, ErrSessionNotFound)
		require.ErrorIs(t, err, apperror.ErrNotFound)
		assert.Empty(t, retrieved.ID)
	})
}

func TestSessionRepository_DeleteByID(t *testing.T) {
	t.Run("DeleteByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage, 0)

		// Given: a stored snapshot
		snapshot := testSnapshot()
		require.NoError(t, sessionRepo.Save(ctx, snapshot))

		// When: DeleteByID is called with the existing ID
		err := sessionRepo.DeleteByID(ctx, snapshot.ID)

		// Then: the snapshot is gone
		require.NoError(t, err)

		_, err = sessionRepo.GetByID(ctx, snapshot.ID)
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("DeleteByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage, 0)

		// When: DeleteByID is called with a non-existent ID
		err := sessionRepo.DeleteByID(ctx, "9999999")

		// Then: a not found error should be returned
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}
