package entity

import (
	"testing"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMethods(t *testing.T) {
	t.Run("IsFinished returns true when status is finished", func(t *testing.T) {
		// Given: a finished status
		status := StatusFinished

		// Then: only IsFinished should be true
		assert.True(t, status.IsFinished())
		assert.False(t, status.IsOngoing())
		assert.False(t, status.IsWaiting())
	})

	t.Run("IsOngoing returns true when status is ongoing", func(t *testing.T) {
		assert.True(t, StatusOngoing.IsOngoing())
	})

	t.Run("IsWaiting returns true when status is waiting", func(t *testing.T) {
		assert.True(t, StatusWaiting.IsWaiting())
	})
}

func TestStatus_ConfirmOngoing(t *testing.T) {
	t.Run("Returns nil when game is ongoing", func(t *testing.T) {
		// When: checking if the game accepts moves
		err := StatusOngoing.ConfirmOngoing()

		// Then: it should return nil error
		assert.NoError(t, err)
	})

	t.Run("Returns ErrGameNotInProgress when game is waiting", func(t *testing.T) {
		err := StatusWaiting.ConfirmOngoing()

		assert.ErrorIs(t, err, apperror.ErrGameNotInProgress)
		assert.Contains(t, err.Error(), "not started")
	})

	t.Run("Returns ErrGameNotInProgress when game is finished", func(t *testing.T) {
		err := StatusFinished.ConfirmOngoing()

		assert.ErrorIs(t, err, apperror.ErrGameNotInProgress)
		assert.Contains(t, err.Error(), "already finished")
	})

	t.Run("Returns error for unknown status", func(t *testing.T) {
		// Given: a status nobody defined
		status := Status("unknown")

		// When: checking if the game accepts moves
		err := status.ConfirmOngoing()

		// Then: it should return an error naming the status
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown status")
	})
}

func TestOutcome(t *testing.T) {
	t.Run("Win and draw are terminal", func(t *testing.T) {
		assert.True(t, Win(Black).IsTerminal())
		assert.True(t, Draw().IsTerminal())
		assert.False(t, Ongoing().IsTerminal())
	})

	t.Run("String names the winner", func(t *testing.T) {
		assert.Equal(t, "white wins", Win(White).String())
		assert.Equal(t, "draw", Draw().String())
		assert.Equal(t, "ongoing", Ongoing().String())
	})
}

func TestFieldState_Opponent(t *testing.T) {
	assert.Equal(t, White, Black.Opponent())
	assert.Equal(t, Black, White.Opponent())
	assert.Equal(t, Empty, Empty.Opponent())
	assert.False(t, Empty.IsStone())
	assert.True(t, White.IsStone())
}
