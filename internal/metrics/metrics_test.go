package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Game(t *testing.T) {
	// Given: metrics on a private registry
	m := New(prometheus.NewRegistry())

	// When: stones are placed, a cell is cleared and the game ends
	m.OnCellChanged(entity.BoardField{Column: 0, Row: 0, State: entity.Black})
	m.OnCellChanged(entity.BoardField{Column: 1, Row: 0, State: entity.White})
	m.OnCellChanged(entity.BoardField{Column: 2, Row: 0, State: entity.Black})
	m.OnCellChanged(entity.BoardField{Column: 2, Row: 0, State: entity.Empty})
	m.OnOutcome(entity.Win(entity.Black))
	m.OnOutcome(entity.Draw())

	// Then: the counters reflect only real moves
	assert.InDelta(t, 2, testutil.ToFloat64(m.moves.WithLabelValues("black")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.moves.WithLabelValues("white")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.gamesFinished.WithLabelValues("black")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.gamesFinished.WithLabelValues("draw")), 0)
}

func TestMetrics_Sessions(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionOpened()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(apperror.ErrSessionClosed)
	m.SessionClosed(fmt.Errorf("failed to handle MOVE: %w", apperror.ErrProtocol))

	assert.InDelta(t, 1, testutil.ToFloat64(m.activeSessions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.protocolErrors), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.disconnects.WithLabelValues("local")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.disconnects.WithLabelValues("protocol")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.disconnects.WithLabelValues("transport")), 0)
}
