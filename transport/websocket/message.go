package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	actionMove     = "move"
	actionMessage  = "message"
	actionRestart  = "restart"
	actionCancel   = "cancel"
	actionSettings = "settings"

	actionSnapshot = "snapshot"
	actionCell     = "cell"
	actionTurn     = "turn"
	actionOutcome  = "outcome"
	actionStatus   = "status"
	actionReset    = "reset"
)

type MovePayload struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type SettingsPayload struct {
	BoardSize   int  `json:"board_size"`
	WinLength   int  `json:"win_length"`
	ExactLength bool `json:"exact_length"`
}

type CellPayload struct {
	Column int    `json:"column"`
	Row    int    `json:"row"`
	State  string `json:"state"`
}

type TurnPayload struct {
	Color string `json:"color"`
}

type OutcomePayload struct {
	Result string `json:"result"`
	Winner string `json:"winner,omitempty"`
}

type ResetPayload struct {
	Size int `json:"size"`
}

type SnapshotPayload struct {
	Size      int           `json:"size"`
	WinLength int           `json:"win_length"`
	Turn      string        `json:"turn"`
	Status    string        `json:"status"`
	Stones    []CellPayload `json:"stones"`
	LastMove  *CellPayload  `json:"last_move,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Action: action, Payload: raw})
}

func cellPayload(field entity.BoardField) CellPayload {
	return CellPayload{Column: field.Column, Row: field.Row, State: field.State.String()}
}

func outcomePayload(outcome entity.Outcome) OutcomePayload {
	payload := OutcomePayload{Result: outcome.String()}
	if outcome.Kind == entity.OutcomeWin {
		payload.Winner = outcome.Winner.String()
	}

	return payload
}

// snapshotPayload sends stones only, an empty cell is implied.
func snapshotPayload(snapshot gomoku.Snapshot) SnapshotPayload {
	payload := SnapshotPayload{
		Size:      snapshot.Size,
		WinLength: snapshot.WinLength,
		Turn:      snapshot.Turn.String(),
		Status:    string(snapshot.Status),
		Stones:    []CellPayload{},
	}

	for _, field := range snapshot.Fields {
		if field.State.IsStone() {
			payload.Stones = append(payload.Stones, cellPayload(field))
		}
	}

	if snapshot.LastMove != nil {
		last := cellPayload(snapshot.LastMove.Field())
		payload.LastMove = &last
	}

	return payload
}
