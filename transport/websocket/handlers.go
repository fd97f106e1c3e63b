package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

func (that *Server) handleMove(msg *Message) error {
	var payload MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.game.SubmitLocalMove(payload.Column, payload.Row)
}

func (that *Server) handleMessage(msg *Message) error {
	var payload TextPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.Text == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}

	return that.game.SendMessage(payload.Text)
}

func (that *Server) handleRestart(*Message) error {
	return that.game.Restart()
}

func (that *Server) handleCancel(*Message) error {
	return that.game.Cancel()
}

func (that *Server) handleSettings(msg *Message) error {
	var payload SettingsPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.game.ApplySettings(payload.BoardSize, gomoku.Rules{
		WinLength:   payload.WinLength,
		ExactLength: payload.ExactLength,
	})
}
