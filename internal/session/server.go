package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/protocol"
)

type ServerConfig struct {
	Addr             string
	Settings         protocol.Settings
	Welcome          []string
	HandshakeTimeout time.Duration
	Heartbeat        time.Duration
}

// Server accepts one peer at a time and performs the host side of the handshake.
type Server struct {
	logger   *slog.Logger
	listener net.Listener
	cfg      ServerConfig

	mu       sync.Mutex
	settings protocol.Settings
}

func Listen(logger *slog.Logger, cfg ServerConfig) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	return &Server{
		logger:   logger.With("component", "session_server"),
		listener: listener,
		cfg:      cfg,
		settings: cfg.Settings,
	}, nil
}

// Addr returns the bound address, with the real port when ":0" was requested.
func (that *Server) Addr() string {
	return that.listener.Addr().String()
}

func (that *Server) Settings() protocol.Settings {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.settings
}

// SetSettings changes what the next accepted peer receives.
func (that *Server) SetSettings(settings protocol.Settings) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.settings = settings
}

// Accept waits for a peer and runs the handshake. The returned connection is not started yet.
func (that *Server) Accept(ctx context.Context) (*Conn, protocol.Handshake, error) {
	log := that.logger.With("method", "Accept")

	deadliner, canDeadline := that.listener.(interface{ SetDeadline(t time.Time) error })
	if canDeadline {
		_ = deadliner.SetDeadline(time.Time{})

		stop := context.AfterFunc(ctx, func() {
			_ = deadliner.SetDeadline(time.Now())
		})
		defer stop()
	}

	raw, err := that.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, protocol.Handshake{}, fmt.Errorf("accept canceled: %w", ctx.Err())
		}

		if errors.Is(err, net.ErrClosed) {
			return nil, protocol.Handshake{}, fmt.Errorf("%w: listener closed", apperror.ErrSessionClosed)
		}

		return nil, protocol.Handshake{}, fmt.Errorf("%w: failed to accept: %w", apperror.ErrTransport, err)
	}

	conn := newConn(that.logger, raw, RoleHost, that.cfg.Heartbeat)

	handshake, err := that.handshake(ctx, conn)
	if err != nil {
		log.Warn("handshake failed", "remote", raw.RemoteAddr().String(), "error", err)
		_ = conn.Close()

		return nil, protocol.Handshake{}, err
	}

	log.Info("peer connected", "remote", conn.RemoteAddr(), "name", handshake.Name)

	return conn, handshake, nil
}

func (that *Server) handshake(ctx context.Context, conn *Conn) (protocol.Handshake, error) {
	stop := bindDeadline(ctx, conn.raw, that.cfg.HandshakeTimeout)
	defer stop()

	settings := that.Settings()
	settings.HeartbeatMillis = that.cfg.Heartbeat.Milliseconds()

	if err := conn.Send(settings); err != nil {
		return protocol.Handshake{}, fmt.Errorf("failed to send settings: %w", err)
	}

	for _, text := range that.cfg.Welcome {
		if err := conn.Send(protocol.Message{Text: text}); err != nil {
			return protocol.Handshake{}, fmt.Errorf("failed to send welcome: %w", err)
		}
	}

	if err := conn.Send(protocol.Ping{}); err != nil {
		return protocol.Handshake{}, fmt.Errorf("failed to end batch: %w", err)
	}

	cmd, err := conn.reader.Read()
	if err != nil {
		return protocol.Handshake{}, conn.classify(err)
	}

	handshake, ok := cmd.(protocol.Handshake)
	if !ok {
		return protocol.Handshake{}, fmt.Errorf("%w: expected %s, got %s", protocol.ErrUnexpectedCmd, protocol.CmdHandshake, cmd.Type())
	}

	if handshake.Version != protocol.Version {
		return protocol.Handshake{}, fmt.Errorf("%w: %d", protocol.ErrVersionMismatch, handshake.Version)
	}

	if err = conn.Send(protocol.NewState(entity.StatePlaying)); err != nil {
		return protocol.Handshake{}, fmt.Errorf("failed to send state: %w", err)
	}

	conn.SetBoardSize(settings.BoardSize)

	return handshake, nil
}

func (that *Server) Close() error {
	if err := that.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}

	return nil
}

// bindDeadline bounds handshake I/O by timeout and by ctx. The returned func clears both.
func bindDeadline(ctx context.Context, raw net.Conn, timeout time.Duration) func() {
	if timeout > 0 {
		_ = raw.SetDeadline(time.Now().Add(timeout))
	}

	stop := context.AfterFunc(ctx, func() {
		_ = raw.SetDeadline(time.Now())
	})

	return func() {
		stop()
		_ = raw.SetDeadline(time.Time{})
	}
}
