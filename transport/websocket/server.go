package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 1024
	sendBuffer      = 64
	shutdownTimeout = 5 * time.Second
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

type game interface {
	SubmitLocalMove(column, row int) error
	SendMessage(text string) error
	Restart() error
	Cancel() error
	ApplySettings(size int, rules gomoku.Rules) error
	Snapshot() gomoku.Snapshot
}

// Server bridges a browser board to the match: clicks come in as actions,
// controller notifications go out to every connected page.
type Server struct {
	logger   *slog.Logger
	game     game
	upgrader websocket.Upgrader

	handlers map[string]func(msg *Message) error

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(logger *slog.Logger, game game) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		game:   game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		handlers: make(map[string]func(*Message) error),
		clients:  make(map[*client]struct{}),
	}

	server.handlers[actionMove] = server.handleMove
	server.handlers[actionMessage] = server.handleMessage
	server.handlers[actionRestart] = server.handleRestart
	server.handlers[actionCancel] = server.handleCancel
	server.handlers[actionSettings] = server.handleSettings

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start serves /ws until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
		that.closeClients()
	})
	defer stop()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection and sends the current board.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	that.mu.Lock()
	that.clients[c] = struct{}{}
	that.mu.Unlock()

	log.Info("WebSocket connection established", "remote", conn.RemoteAddr().String())

	go c.writePump(that.logger)

	that.sendTo(c, actionSnapshot, snapshotPayload(that.game.Snapshot()))
	that.readPump(c)
}

func (that *Server) readPump(c *client) {
	log := that.logger.With("method", "readPump")

	defer that.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}

			return
		}

		var msg Message
		if err = json.Unmarshal(data, &msg); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendTo(c, "error", ErrorPayload{Error: "malformed message"})

			continue
		}

		if err = that.processMessage(&msg); err != nil {
			log.Debug("action failed", "action", msg.Action, "error", err)
			that.sendTo(c, msg.Action, ErrorPayload{Error: err.Error()})
		}
	}
}

// processMessage - dispatches an incoming action to its handler.
func (that *Server) processMessage(msg *Message) error {
	if handler, ok := that.handlers[msg.Action]; ok {
		return handler(msg)
	}

	return fmt.Errorf("%w: %s", ErrUnknownAction, msg.Action)
}

func (that *Server) sendTo(c *client, action string, payload any) {
	data, err := encode(action, payload)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", action, "error", err)
		return
	}

	if !c.enqueue(data) {
		that.unregister(c)
	}
}

func (that *Server) broadcast(action string, payload any) {
	data, err := encode(action, payload)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", action, "error", err)
		return
	}

	that.mu.Lock()
	clients := make([]*client, 0, len(that.clients))
	for c := range that.clients {
		clients = append(clients, c)
	}
	that.mu.Unlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			that.logger.Warn("client is too slow, dropping it")
			that.unregister(c)
		}
	}
}

func (that *Server) unregister(c *client) {
	that.mu.Lock()
	_, ok := that.clients[c]
	delete(that.clients, c)
	that.mu.Unlock()

	if ok {
		c.close()
	}
}

func (that *Server) closeClients() {
	that.mu.Lock()
	clients := that.clients
	that.clients = make(map[*client]struct{})
	that.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (that *Server) OnCellChanged(field entity.BoardField) {
	that.broadcast(actionCell, cellPayload(field))
}

func (that *Server) OnTurnChanged(color entity.FieldState) {
	that.broadcast(actionTurn, TurnPayload{Color: color.String()})
}

func (that *Server) OnOutcome(outcome entity.Outcome) {
	that.broadcast(actionOutcome, outcomePayload(outcome))
}

func (that *Server) OnStatus(text string) {
	that.broadcast(actionStatus, TextPayload{Text: text})
}

func (that *Server) OnBoardReset(size int) {
	that.broadcast(actionReset, ResetPayload{Size: size})
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// enqueue never blocks the dispatcher; a full buffer means the page stopped reading.
func (that *client) enqueue(data []byte) bool {
	select {
	case <-that.done:
		return true
	default:
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}

func (that *client) writePump(logger *slog.Logger) {
	log := logger.With("method", "writePump")

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-that.done:
			return
		case data := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("failed to write message", "error", err)
				that.close()

				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				that.close()
				return
			}
		}
	}
}
