package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
)

const namespace = "gomoku"

// Metrics counts moves, finished games and session lifecycle.
// It is a controller listener, so every match it is subscribed to feeds the same collectors.
type Metrics struct {
	moves          *prometheus.CounterVec
	gamesFinished  *prometheus.CounterVec
	protocolErrors prometheus.Counter
	disconnects    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		moves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Stones placed, by color.",
		}, []string{"color"}),
		gamesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games, by outcome.",
		}, []string{"outcome"}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections torn down because of a protocol error.",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Ended network sessions, by reason.",
		}, []string{"reason"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Network sessions currently connected.",
		}),
	}
}

func (that *Metrics) OnCellChanged(field entity.BoardField) {
	if field.State.IsStone() {
		that.moves.WithLabelValues(field.State.String()).Inc()
	}
}

func (that *Metrics) OnTurnChanged(entity.FieldState) {}

func (that *Metrics) OnOutcome(outcome entity.Outcome) {
	label := "draw"
	if outcome.Kind == entity.OutcomeWin {
		label = outcome.Winner.String()
	}

	that.gamesFinished.WithLabelValues(label).Inc()
}

func (that *Metrics) OnStatus(string) {}

func (that *Metrics) OnBoardReset(int) {}

func (that *Metrics) SessionOpened() {
	that.activeSessions.Inc()
}

// SessionClosed records why a session ended.
func (that *Metrics) SessionClosed(err error) {
	that.activeSessions.Dec()

	reason := "transport"
	switch {
	case errors.Is(err, apperror.ErrSessionClosed):
		reason = "local"
	case errors.Is(err, apperror.ErrProtocol):
		reason = "protocol"
		that.protocolErrors.Inc()
	}

	that.disconnects.WithLabelValues(reason).Inc()
}
