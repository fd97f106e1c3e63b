package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/protocol"
)

const (
	writeWait = 10 * time.Second

	// silence longer than this many heartbeat intervals is a dead peer.
	missedHeartbeats = 3
)

var ErrAlreadyStarted = errors.New("receive loop already started")

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Handler receives what the peer sends. Both methods run on the receive loop goroutine.
// HandleDisconnect is called exactly once per started receive loop and must not wait on Done.
type Handler interface {
	HandleCommand(cmd protocol.Command) error
	HandleDisconnect(err error)
}

// Conn is one peer connection with its own receive loop.
type Conn struct {
	logger *slog.Logger
	id     string
	role   Role

	raw    net.Conn
	reader *protocol.Reader

	writeMu sync.Mutex
	writer  *protocol.Writer

	heartbeat time.Duration

	started    atomic.Bool
	closeOnce  sync.Once
	closing    chan struct{}
	finishOnce sync.Once
	done       chan struct{}
	err        error
}

func newConn(logger *slog.Logger, raw net.Conn, role Role, heartbeat time.Duration) *Conn {
	id := uuid.New().String()

	return &Conn{
		logger:    logger.With("component", "session", "conn_id", id, "role", string(role)),
		id:        id,
		role:      role,
		raw:       raw,
		reader:    protocol.NewReader(raw),
		writer:    protocol.NewWriter(raw),
		heartbeat: heartbeat,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// NewConn wraps an established connection. The caller is responsible for any handshake.
func NewConn(logger *slog.Logger, raw net.Conn, role Role, heartbeat time.Duration) *Conn {
	return newConn(logger, raw, role, heartbeat)
}

func (that *Conn) ID() string {
	return that.id
}

func (that *Conn) Role() Role {
	return that.role
}

func (that *Conn) RemoteAddr() string {
	return that.raw.RemoteAddr().String()
}

// SetBoardSize sets the size inbound MOVE commands are checked against.
func (that *Conn) SetBoardSize(size int) {
	that.reader.SetBoardSize(size)
}

// Send writes one command to the peer. It is safe to call from any goroutine.
func (that *Conn) Send(cmd protocol.Command) error {
	select {
	case <-that.closing:
		return apperror.ErrSessionClosed
	default:
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.raw.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrTransport, err)
	}

	if err := that.writer.Write(cmd); err != nil {
		if errors.Is(err, apperror.ErrProtocol) {
			return err
		}

		return fmt.Errorf("%w: failed to send %s: %w", apperror.ErrTransport, cmd.Type(), err)
	}

	return nil
}

// Start runs the receive loop, and the keepalive when a heartbeat is configured.
// The read deadline follows the same heartbeat, which both ends take from the host's SETTINGS.
func (that *Conn) Start(handler Handler) error {
	if !that.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	select {
	case <-that.closing:
		// Close ran after started was set and left finishing to us
		that.finish(nil, apperror.ErrSessionClosed)
		return apperror.ErrSessionClosed
	default:
	}

	go that.receiveLoop(handler)

	if that.heartbeat > 0 {
		go that.keepAlive()
	}

	return nil
}

// Close tears the connection down. It may be called any number of times from any goroutine;
// a receive loop blocked on read wakes up and reports ErrSessionClosed.
func (that *Conn) Close() error {
	var err error
	that.closeOnce.Do(func() {
		close(that.closing)
		err = that.raw.Close()
	})

	if !that.started.Load() {
		that.finish(nil, apperror.ErrSessionClosed)
	}

	return err
}

// Done is closed after the disconnect notification has been delivered.
func (that *Conn) Done() <-chan struct{} {
	return that.done
}

// Err returns why the connection ended. It is valid after Done is closed.
func (that *Conn) Err() error {
	<-that.done

	return that.err
}

func (that *Conn) receiveLoop(handler Handler) {
	log := that.logger.With("method", "receiveLoop")
	log.Debug("receive loop started")

	for {
		if that.heartbeat > 0 {
			_ = that.raw.SetReadDeadline(time.Now().Add(missedHeartbeats * that.heartbeat))
		}

		cmd, err := that.reader.Read()
		if err != nil {
			that.finish(handler, that.classify(err))
			return
		}

		if cmd.Type() == protocol.CmdPing {
			continue
		}

		if err = handler.HandleCommand(cmd); err != nil {
			that.finish(handler, fmt.Errorf("failed to handle %s: %w", cmd.Type(), err))
			return
		}
	}
}

func (that *Conn) classify(err error) error {
	select {
	case <-that.closing:
		return apperror.ErrSessionClosed
	default:
	}

	if errors.Is(err, apperror.ErrProtocol) {
		return err
	}

	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: peer closed the connection: %w", apperror.ErrTransport, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: peer is silent: %w", apperror.ErrTransport, err)
	}

	return fmt.Errorf("%w: %w", apperror.ErrTransport, err)
}

func (that *Conn) finish(handler Handler, err error) {
	that.finishOnce.Do(func() {
		log := that.logger.With("method", "finish")

		that.closeOnce.Do(func() {
			close(that.closing)
			_ = that.raw.Close()
		})

		that.err = err

		if errors.Is(err, apperror.ErrSessionClosed) {
			log.Info("connection closed locally")
		} else {
			log.Warn("connection lost", "error", err)
		}

		if handler != nil {
			handler.HandleDisconnect(err)
		}

		close(that.done)
	})
}

func (that *Conn) keepAlive() {
	log := that.logger.With("method", "keepAlive")

	ticker := time.NewTicker(that.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-that.closing:
			return
		case <-ticker.C:
			if err := that.Send(protocol.Ping{}); err != nil {
				log.Debug("failed to send ping", "error", err)
				// the receive loop wakes up on the broken socket and reports the failure
				_ = that.raw.Close()

				return
			}
		}
	}
}
