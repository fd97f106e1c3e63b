package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku/internal/analytics"
	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
	"github.com/rocketscienceinc/gomoku/internal/player"
	"github.com/rocketscienceinc/gomoku/internal/protocol"
	"github.com/rocketscienceinc/gomoku/internal/session"
)

var (
	ErrNotConnected = errors.New("not connected to a peer")
	ErrNotHost      = errors.New("only the host can change settings")
	ErrNoLocalTurn  = errors.New("no local player is waiting for a move")
)

type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeLocal    Mode = "local"
	ModeComputer Mode = "computer"
	ModeServer   Mode = "server"
	ModeClient   Mode = "client"
)

type eventPublisher interface {
	Publish(event analytics.GameEvent)
}

type sessionMetrics interface {
	SessionOpened()
	SessionClosed(err error)
}

// tracker follows the current game id.
type tracker interface {
	gomoku.Listener
	Track(id string)
}

type MatchConfig struct {
	BoardSize     int
	Rules         gomoku.Rules
	PlayerName    string
	ComputerColor entity.FieldState
	Strategy      player.Strategy

	HandshakeTimeout time.Duration

	// optional collaborators
	Sessions  sessionRepo
	Publisher eventPublisher
	Metrics   sessionMetrics
}

// Match runs one game session at a time: local, against the computer, or against a network peer.
type Match struct {
	logger     *slog.Logger
	controller *gomoku.GameController
	cfg        MatchConfig
	trackers   []tracker

	ctx    context.Context
	cancel context.CancelFunc

	// gameMu orders board replacements against the moves exchanged with the peer.
	// It is taken before mu.
	gameMu     sync.Mutex
	generation uint32

	mu         sync.Mutex
	id         string
	mode       Mode
	size       int
	rules      gomoku.Rules
	state      entity.GameState
	players    map[entity.FieldState]player.Player
	conn       *session.Conn
	peerName   string
	server     *session.Server
	redialAddr string
}

func NewMatch(logger *slog.Logger, controller *gomoku.GameController, cfg MatchConfig) *Match {
	if cfg.Strategy == nil {
		cfg.Strategy = player.RandomStrategy{}
	}

	if !cfg.ComputerColor.IsStone() {
		cfg.ComputerColor = entity.White
	}

	ctx, cancel := context.WithCancel(context.Background())

	match := &Match{
		logger:     logger.With("component", "match"),
		controller: controller,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		mode:       ModeIdle,
		size:       cfg.BoardSize,
		rules:      cfg.Rules,
		state:      entity.GameState{Kind: entity.StateWait},
		players:    map[entity.FieldState]player.Player{},
	}

	if cfg.Sessions != nil {
		match.trackers = append(match.trackers, NewRecorder(logger, cfg.Sessions, controller))
	}

	if cfg.Publisher != nil {
		match.trackers = append(match.trackers, analytics.NewTracker(cfg.Publisher))
	}

	controller.Subscribe(match)
	for _, t := range match.trackers {
		controller.Subscribe(t)
	}

	return match
}

func (that *Match) ID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.id
}

func (that *Match) Mode() Mode {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.mode
}

func (that *Match) State() entity.GameState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

func (that *Match) Snapshot() gomoku.Snapshot {
	return that.controller.Snapshot()
}

// Player returns the player of color in the current session.
func (that *Match) Player(color entity.FieldState) (player.Player, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	p, ok := that.players[color]

	return p, ok
}

// StartLocal starts a game between two people sharing this machine.
func (that *Match) StartLocal() error {
	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeLocal
	that.players = map[entity.FieldState]player.Player{
		entity.Black: player.NewLocal(that.cfg.PlayerName, entity.Black, that.controller),
		entity.White: player.NewLocal("opponent", entity.White, that.controller),
	}
	that.mu.Unlock()

	if err := that.startGame(""); err != nil {
		return err
	}

	that.notify("local game started")

	return nil
}

// StartComputer starts a game against the computer strategy.
func (that *Match) StartComputer() error {
	computerColor := that.cfg.ComputerColor

	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeComputer
	that.players = map[entity.FieldState]player.Player{
		computerColor.Opponent(): player.NewLocal(that.cfg.PlayerName, computerColor.Opponent(), that.controller),
		computerColor:            player.NewComputer(that.logger, "computer", computerColor, that.controller, that.cfg.Strategy),
	}
	that.mu.Unlock()

	if err := that.startGame(""); err != nil {
		return err
	}

	that.notify(fmt.Sprintf("game against the computer started, you play %s", computerColor.Opponent()))

	return nil
}

// Resume restarts a stored local game from its move list.
func (that *Match) Resume(ctx context.Context, id string) error {
	log := that.logger.With("method", "Resume")

	if that.cfg.Sessions == nil {
		return fmt.Errorf("resume %s: session store is disabled", id)
	}

	stored, err := that.cfg.Sessions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeLocal
	that.size = stored.BoardSize
	that.rules = gomoku.Rules{WinLength: stored.WinLength, ExactLength: stored.ExactLength}
	that.players = map[entity.FieldState]player.Player{
		entity.Black: player.NewLocal(that.cfg.PlayerName, entity.Black, that.controller),
		entity.White: player.NewLocal("opponent", entity.White, that.controller),
	}
	that.mu.Unlock()

	if err = that.startGame(stored.ID); err != nil {
		return err
	}

	for _, move := range stored.Moves {
		if _, err = that.controller.SubmitMove(move.Column, move.Row, move.Color); err != nil {
			return fmt.Errorf("failed to replay move (%d, %d): %w", move.Column, move.Row, err)
		}
	}

	log.Info("session resumed", "id", stored.ID, "moves", len(stored.Moves))
	that.notify(fmt.Sprintf("resumed game %s after %d moves", stored.ID, len(stored.Moves)))

	return nil
}

// Serve hosts network games on srv until ctx is canceled, one peer at a time.
func (that *Match) Serve(ctx context.Context, srv *session.Server) error {
	log := that.logger.With("method", "Serve")

	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeServer
	that.server = srv
	that.mu.Unlock()

	srv.SetSettings(that.settings())
	that.notify(fmt.Sprintf("waiting for a player on %s", srv.Addr()))

	for {
		conn, handshake, err := srv.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, apperror.ErrSessionClosed) {
				return nil
			}

			log.Warn("failed to accept peer", "error", err)
			that.notify(fmt.Sprintf("connection attempt failed: %v", err))

			continue
		}

		if err = that.attach(conn, session.RoleHost, handshake.Name, srv.Settings().BoardSize); err != nil {
			log.Error("failed to attach peer", "error", err)
			_ = conn.Close()

			continue
		}

		select {
		case <-conn.Done():
			that.notify(fmt.Sprintf("waiting for a player on %s", srv.Addr()))
		case <-ctx.Done():
			_ = conn.Close()
			<-conn.Done()

			return nil
		}
	}
}

// Join connects to a host and plays as white.
func (that *Match) Join(ctx context.Context, addr string) error {
	that.notify(fmt.Sprintf("connecting to %s", addr))

	conn, greeting, err := session.Dial(ctx, that.logger, session.DialConfig{
		Addr:             addr,
		Name:             that.cfg.PlayerName,
		HandshakeTimeout: that.cfg.HandshakeTimeout,
	})
	if err != nil {
		that.notify(fmt.Sprintf("failed to connect to %s: %v", addr, err))
		return fmt.Errorf("failed to join %s: %w", addr, err)
	}

	for _, text := range greeting.Messages {
		that.notify(text)
	}

	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeClient
	that.rules = gomoku.Rules{WinLength: greeting.Settings.WinLength, ExactLength: greeting.Settings.ExactLength}
	that.mu.Unlock()

	if err = that.attach(conn, session.RoleGuest, greeting.Settings.HostName, greeting.Settings.BoardSize); err != nil {
		_ = conn.Close()
		return err
	}

	return nil
}

func (that *Match) attach(conn *session.Conn, role session.Role, peerName string, size int) error {
	localColor := entity.Black
	if role == session.RoleGuest {
		localColor = entity.White
	}

	if peerName == "" {
		peerName = "peer"
	}

	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	that.generation = 0

	that.mu.Lock()
	if that.conn != nil {
		_ = that.conn.Close()
	}
	that.conn = conn
	that.peerName = peerName
	that.size = size
	that.state = entity.GameState{Kind: entity.StatePlaying}
	that.players = map[entity.FieldState]player.Player{
		localColor:            player.NewLocal(that.cfg.PlayerName, localColor, that.controller),
		localColor.Opponent(): player.NewRemote(peerName, localColor.Opponent(), that.controller),
	}
	that.mu.Unlock()

	if that.cfg.Metrics != nil {
		that.cfg.Metrics.SessionOpened()
	}

	// the board must exist before the first MOVE can be read
	if err := that.startGame(""); err != nil {
		return err
	}

	that.publish(analytics.NewSessionEvent(analytics.EventSessionOpen, that.ID(), string(role), conn.RemoteAddr()))

	if err := conn.Start(&peerHandler{match: that, conn: conn}); err != nil {
		that.mu.Lock()
		if that.conn == conn {
			that.conn = nil
		}
		that.mu.Unlock()

		that.stopGame()

		return fmt.Errorf("failed to start session: %w", err)
	}

	that.notify(fmt.Sprintf("playing %s against %s", localColor, peerName))

	return nil
}

// SubmitLocalMove places a stone for whichever local player is waiting for a move.
// In a network game the move is also sent to the peer.
func (that *Match) SubmitLocalMove(column, row int) error {
	log := that.logger.With("method", "SubmitLocalMove")

	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	that.mu.Lock()
	var local *player.Local
	for _, p := range that.players {
		if l, ok := p.(*player.Local); ok && l.Armed() {
			local = l
			break
		}
	}
	conn := that.conn
	that.mu.Unlock()

	if local == nil {
		return ErrNoLocalTurn
	}

	applied, err := local.Click(column, row)
	if err != nil {
		return err
	}

	if conn != nil {
		move := protocol.Move{Column: applied.Move.Column, Row: applied.Move.Row, Generation: that.generation}
		if err = conn.Send(move); err != nil {
			log.Warn("failed to send move", "error", err)
			return fmt.Errorf("move placed locally but not sent: %w", err)
		}
	}

	return nil
}

// SendMessage sends a chat line to the peer.
func (that *Match) SendMessage(text string) error {
	conn := that.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.Send(protocol.Message{Text: text}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	that.notify(fmt.Sprintf("%s: %s", that.cfg.PlayerName, text))

	return nil
}

// Restart clears the board and starts a new game with black to move, on both ends when connected.
func (that *Match) Restart() error {
	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	if conn := that.currentConn(); conn != nil {
		if err := conn.Send(protocol.NewRestart("")); err != nil {
			return fmt.Errorf("failed to send restart: %w", err)
		}

		that.generation++
	}

	that.interruptTurn()

	if err := that.startGame(""); err != nil {
		return err
	}

	that.setState(entity.StatePlaying)
	that.notify("game restarted")

	return nil
}

// Cancel ends the current game without starting a new one.
func (that *Match) Cancel() error {
	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	if conn := that.currentConn(); conn != nil {
		if err := conn.Send(protocol.NewState(entity.StateWait)); err != nil {
			return fmt.Errorf("failed to send cancel: %w", err)
		}

		that.generation++
	}

	that.stopGame()
	that.notify("game canceled")

	return nil
}

// Redirect tells the peer to reconnect at addr and drops the connection.
func (that *Match) Redirect(addr string) error {
	conn := that.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.Send(protocol.NewRestart(addr)); err != nil {
		return fmt.Errorf("failed to send restart: %w", err)
	}

	return conn.Close()
}

// ApplySettings changes the board for the next game and restarts with it.
// A connected host sends the new settings to its peer first.
func (that *Match) ApplySettings(size int, rules gomoku.Rules) error {
	if size < entity.MinBoardSize || size > entity.MaxBoardSize {
		return fmt.Errorf("%w: %d", entity.ErrInvalidBoardSize, size)
	}

	if rules.WinLength <= 0 || rules.WinLength > size {
		return fmt.Errorf("win length %d does not fit a %dx%d board", rules.WinLength, size, size)
	}

	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	that.mu.Lock()
	conn := that.conn
	if conn != nil && conn.Role() != session.RoleHost {
		that.mu.Unlock()
		return ErrNotHost
	}
	previousSize := that.size
	that.size = size
	that.rules = rules
	server := that.server
	that.mu.Unlock()

	settings := that.settings()
	if server != nil {
		server.SetSettings(settings)
	}

	if conn != nil {
		// moves of the previous board may still be in flight and are dropped by generation
		conn.SetBoardSize(max(size, previousSize))

		if err := conn.Send(settings); err != nil {
			return fmt.Errorf("failed to send settings: %w", err)
		}

		that.generation++

		if err := conn.Send(protocol.NewState(entity.StatePlaying)); err != nil {
			return fmt.Errorf("failed to send state: %w", err)
		}
	}

	that.interruptTurn()

	if err := that.startGame(""); err != nil {
		return err
	}

	that.notify(fmt.Sprintf("new settings: %dx%d, %d in a row", size, size, rules.WinLength))

	return nil
}

// Disconnect closes the network session. The disconnect notification follows asynchronously.
func (that *Match) Disconnect() error {
	conn := that.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	return conn.Close()
}

// Close ends the session and stops any computer player.
func (that *Match) Close() {
	that.cancel()

	that.mu.Lock()
	that.teardownLocked()
	that.mode = ModeIdle
	that.mu.Unlock()
}

func (that *Match) handleCommand(conn *session.Conn, cmd protocol.Command) error {
	log := that.logger.With("method", "handleCommand", "command", cmd.Type().String())

	that.gameMu.Lock()
	defer that.gameMu.Unlock()

	that.mu.Lock()
	if that.conn != conn {
		that.mu.Unlock()
		return nil
	}
	remote := that.remotePlayer()
	peerName := that.peerName
	that.mu.Unlock()

	switch c := cmd.(type) {
	case protocol.Move:
		if remote == nil {
			return fmt.Errorf("%w: no remote player", protocol.ErrUnexpectedCmd)
		}

		if c.Generation != that.generation {
			log.Debug("move from a replaced game discarded",
				"column", c.Column, "row", c.Row, "generation", c.Generation, "current", that.generation)
			return nil
		}

		if _, err := remote.Apply(c.Column, c.Row); err != nil {
			// a cancel crossing the host's new settings can leave this end waiting
			if errors.Is(err, apperror.ErrGameNotInProgress) {
				log.Debug("move outside a game discarded", "column", c.Column, "row", c.Row)
				return nil
			}

			return fmt.Errorf("%w: %w", apperror.ErrProtocol, err)
		}
	case protocol.Message:
		that.notify(fmt.Sprintf("%s: %s", peerName, c.Text))
	case protocol.State:
		return that.handleState(conn, c.State)
	case protocol.Settings:
		if conn.Role() == session.RoleHost {
			return fmt.Errorf("%w: settings from guest", protocol.ErrUnexpectedCmd)
		}

		that.generation++

		that.mu.Lock()
		that.size = c.BoardSize
		that.rules = gomoku.Rules{WinLength: c.WinLength, ExactLength: c.ExactLength}
		that.mu.Unlock()

		conn.SetBoardSize(c.BoardSize)
		that.stopGame()
		that.notify(fmt.Sprintf("host changed settings: %dx%d, %d in a row", c.BoardSize, c.BoardSize, c.WinLength))
	default:
		return fmt.Errorf("%w: %s after handshake", protocol.ErrUnexpectedCmd, cmd.Type())
	}

	return nil
}

// handleState runs with gameMu held. WAIT, SETTINGS and RESTART("") each start a new
// generation on both ends; PLAYING only starts a board that is not in play.
func (that *Match) handleState(conn *session.Conn, state entity.GameState) error {
	switch state.Kind {
	case entity.StateWait:
		that.generation++
		that.stopGame()
		that.notify("peer canceled the game")
	case entity.StatePlaying:
		if that.controller.Status().IsOngoing() {
			return nil
		}

		that.interruptTurn()
		if err := that.startGame(""); err != nil {
			return err
		}

		that.setState(entity.StatePlaying)
		that.notify("new game started")
	case entity.StateRestart:
		if state.ServerAddress != "" {
			that.mu.Lock()
			if conn.Role() == session.RoleGuest {
				that.redialAddr = state.ServerAddress
			}
			that.state = state
			that.mu.Unlock()

			that.notify(fmt.Sprintf("peer moved to %s", state.ServerAddress))

			return conn.Close()
		}

		that.generation++
		that.interruptTurn()
		if err := that.startGame(""); err != nil {
			return err
		}

		that.setState(entity.StatePlaying)
		that.notify("peer restarted the game")
	}

	return nil
}

func (that *Match) handleDisconnect(conn *session.Conn, err error) {
	if that.cfg.Metrics != nil {
		that.cfg.Metrics.SessionClosed(err)
	}

	that.mu.Lock()
	current := that.conn == conn
	redial := ""
	if current {
		that.conn = nil
		redial = that.redialAddr
		that.redialAddr = ""
	}
	that.mu.Unlock()

	that.publish(analytics.NewSessionEvent(analytics.EventSessionClose, that.ID(), string(conn.Role()), conn.RemoteAddr()))

	if !current {
		return
	}

	that.stopGame()

	if errors.Is(err, apperror.ErrSessionClosed) {
		that.notify("disconnected")
	} else {
		that.notify(fmt.Sprintf("connection lost: %v", err))
	}

	if redial != "" {
		go func() {
			if joinErr := that.Join(that.ctx, redial); joinErr != nil {
				that.logger.Warn("failed to follow peer", "addr", redial, "error", joinErr)
			}
		}()
	}
}

// OnTurnChanged arms the player to move and disarms everybody else.
func (that *Match) OnTurnChanged(color entity.FieldState) {
	that.mu.Lock()
	players := make([]player.Player, 0, len(that.players))
	for _, p := range that.players {
		players = append(players, p)
	}
	ctx := that.ctx
	that.mu.Unlock()

	for _, p := range players {
		if p.Color() == color {
			p.MakeMove(ctx)
		} else {
			p.ForceEndTurn()
		}
	}
}

func (that *Match) OnOutcome(outcome entity.Outcome) {
	switch outcome.Kind {
	case entity.OutcomeWin:
		name := outcome.Winner.String()
		if p, ok := that.Player(outcome.Winner); ok {
			name = p.Name()
		}

		that.notify(name + " wins")
	case entity.OutcomeDraw:
		that.notify("draw, the board is full")
	}
}

func (that *Match) OnCellChanged(entity.BoardField) {}

func (that *Match) OnStatus(string) {}

func (that *Match) OnBoardReset(int) {}

// startGame begins a new game on the current size. An empty id draws a fresh one.
func (that *Match) startGame(id string) error {
	if id == "" {
		id = uuid.New().String()
	}

	that.mu.Lock()
	that.id = id
	size := that.size
	rules := that.rules
	players := that.players
	that.mu.Unlock()

	for _, t := range that.trackers {
		t.Track(id)
	}

	that.controller.SetRules(rules)
	if err := that.controller.StartGame(size, entity.Black); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	black, white := "", ""
	if p, ok := players[entity.Black]; ok {
		black = p.Name()
	}
	if p, ok := players[entity.White]; ok {
		white = p.Name()
	}
	that.publish(analytics.NewGameStartEvent(id, black, white, size))

	return nil
}

// stopGame abandons the current game and waits for a new one.
func (that *Match) stopGame() {
	that.interruptTurn()
	that.controller.Reset()
	that.setState(entity.StateWait)
}

// interruptTurn closes the board to moves first, then waits for every player to give up its turn.
func (that *Match) interruptTurn() {
	that.controller.ForceEndTurn()

	that.mu.Lock()
	defer that.mu.Unlock()

	for _, p := range that.players {
		p.ForceEndTurn()
	}
}

// teardownLocked drops the players and the connection of the previous session.
func (that *Match) teardownLocked() {
	that.controller.ForceEndTurn()
	for _, p := range that.players {
		p.ForceEndTurn()
	}
	that.players = map[entity.FieldState]player.Player{}

	if that.conn != nil {
		_ = that.conn.Close()
		that.conn = nil
	}

	that.server = nil
	that.redialAddr = ""
	that.state = entity.GameState{Kind: entity.StateWait}
}

func (that *Match) remotePlayer() *player.Remote {
	for _, p := range that.players {
		if r, ok := p.(*player.Remote); ok {
			return r
		}
	}

	return nil
}

func (that *Match) currentConn() *session.Conn {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.conn
}

func (that *Match) setState(kind entity.GameStateKind) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.state = entity.GameState{Kind: kind}
}

func (that *Match) settings() protocol.Settings {
	that.mu.Lock()
	defer that.mu.Unlock()

	return protocol.Settings{
		BoardSize:   that.size,
		WinLength:   that.rules.WinLength,
		ExactLength: that.rules.ExactLength,
		HostName:    that.cfg.PlayerName,
	}
}

func (that *Match) notify(text string) {
	that.logger.Info("status", "text", text)
	that.controller.Notify(text)
}

func (that *Match) publish(event analytics.GameEvent) {
	if that.cfg.Publisher != nil {
		that.cfg.Publisher.Publish(event)
	}
}

// peerHandler binds receive loop callbacks to the connection they came from.
type peerHandler struct {
	match *Match
	conn  *session.Conn
}

func (that *peerHandler) HandleCommand(cmd protocol.Command) error {
	return that.match.handleCommand(that.conn, cmd)
}

func (that *peerHandler) HandleDisconnect(err error) {
	that.match.handleDisconnect(that.conn, err)
}
