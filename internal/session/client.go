package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/protocol"
)

type DialConfig struct {
	Addr             string
	Name             string
	HandshakeTimeout time.Duration
}

// Greeting is what the host sent before play starts.
type Greeting struct {
	Settings protocol.Settings
	Messages []string
}

// Dial connects to a host and runs the guest side of the handshake.
// The returned connection is not started yet and keeps the heartbeat the host announced.
func Dial(ctx context.Context, logger *slog.Logger, cfg DialConfig) (*Conn, Greeting, error) {
	log := logger.With("component", "session_client", "method", "Dial")

	dialer := net.Dialer{Timeout: cfg.HandshakeTimeout}

	raw, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, Greeting{}, fmt.Errorf("%w: failed to dial %s: %w", apperror.ErrTransport, cfg.Addr, err)
	}

	conn := newConn(logger, raw, RoleGuest, 0)

	greeting, err := clientHandshake(ctx, conn, cfg)
	if err != nil {
		log.Warn("handshake failed", "addr", cfg.Addr, "error", err)
		_ = conn.Close()

		return nil, Greeting{}, err
	}

	log.Info("connected to host", "addr", cfg.Addr, "board_size", greeting.Settings.BoardSize, "heartbeat", conn.heartbeat)

	return conn, greeting, nil
}

func clientHandshake(ctx context.Context, conn *Conn, cfg DialConfig) (Greeting, error) {
	stop := bindDeadline(ctx, conn.raw, cfg.HandshakeTimeout)
	defer stop()

	batch, err := conn.reader.ReadBatch()
	if err != nil {
		return Greeting{}, conn.classify(err)
	}

	if len(batch) == 0 {
		return Greeting{}, fmt.Errorf("%w: expected %s, got an empty batch", protocol.ErrUnexpectedCmd, protocol.CmdSettings)
	}

	settings, ok := batch[0].(protocol.Settings)
	if !ok {
		return Greeting{}, fmt.Errorf("%w: expected %s, got %s", protocol.ErrUnexpectedCmd, protocol.CmdSettings, batch[0].Type())
	}

	greeting := Greeting{Settings: settings}
	for _, cmd := range batch[1:] {
		message, ok := cmd.(protocol.Message)
		if !ok {
			return Greeting{}, fmt.Errorf("%w: %s in welcome batch", protocol.ErrUnexpectedCmd, cmd.Type())
		}

		greeting.Messages = append(greeting.Messages, message.Text)
	}

	conn.SetBoardSize(settings.BoardSize)
	conn.heartbeat = settings.Heartbeat()

	if err = conn.Send(protocol.Handshake{Version: protocol.Version, Name: cfg.Name}); err != nil {
		return Greeting{}, fmt.Errorf("failed to send handshake: %w", err)
	}

	cmd, err := conn.reader.Read()
	if err != nil {
		return Greeting{}, conn.classify(err)
	}

	state, ok := cmd.(protocol.State)
	if !ok || state.State.Kind != entity.StatePlaying {
		return Greeting{}, fmt.Errorf("%w: expected %s PLAYING, got %s", protocol.ErrUnexpectedCmd, protocol.CmdState, cmd.Type())
	}

	return greeting, nil
}
