package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
	"github.com/rocketscienceinc/gomoku/internal/protocol"
	"github.com/rocketscienceinc/gomoku/internal/session"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

var errRedisDown = errors.New("redis down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (that *statusLog) OnCellChanged(entity.BoardField) {}
func (that *statusLog) OnTurnChanged(entity.FieldState) {}
func (that *statusLog) OnOutcome(entity.Outcome)        {}
func (that *statusLog) OnBoardReset(int)                {}

func (that *statusLog) OnStatus(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.lines = append(that.lines, text)
}

func (that *statusLog) contains(part string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, line := range that.lines {
		if strings.Contains(line, part) {
			return true
		}
	}

	return false
}

type mockSessionRepo struct {
	mock.Mock
}

func (that *mockSessionRepo) Save(ctx context.Context, snapshot *entity.SessionSnapshot) error {
	args := that.Called(ctx, snapshot)
	return args.Error(0)
}

func (that *mockSessionRepo) GetByID(ctx context.Context, id string) (*entity.SessionSnapshot, error) {
	args := that.Called(ctx, id)
	if snapshot, ok := args.Get(0).(*entity.SessionSnapshot); ok {
		return snapshot, args.Error(1)
	}

	return nil, args.Error(1)
}

func (that *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	args := that.Called(ctx, id)
	return args.Error(0)
}

type scriptedStrategy struct {
	mu    sync.Mutex
	moves [][2]int
}

func (that *scriptedStrategy) NextMove(context.Context, gomoku.Snapshot) (int, int, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.moves) == 0 {
		return 0, 0, errors.New("script exhausted")
	}

	next := that.moves[0]
	that.moves = that.moves[1:]

	return next[0], next[1], nil
}

type fixture struct {
	match      *Match
	controller *gomoku.GameController
	statuses   *statusLog
}

func newFixture(t *testing.T, name string, cfg MatchConfig) *fixture {
	t.Helper()

	if cfg.BoardSize == 0 {
		cfg.BoardSize = 15
	}
	if cfg.Rules.WinLength == 0 {
		cfg.Rules = gomoku.DefaultRules()
	}
	cfg.PlayerName = name
	cfg.HandshakeTimeout = time.Second

	controller := gomoku.NewGameController(testLogger(), cfg.Rules)
	statuses := &statusLog{}
	controller.Subscribe(statuses)

	match := NewMatch(testLogger(), controller, cfg)

	t.Cleanup(func() {
		match.Close()
		controller.Close()
	})

	return &fixture{match: match, controller: controller, statuses: statuses}
}

// play retries until a local player is armed for the move.
func (that *fixture) play(t *testing.T, column, row int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return that.match.SubmitLocalMove(column, row) == nil
	}, waitFor, tick, "move (%d, %d) was not accepted", column, row)
}

func (that *fixture) waitStatus(t *testing.T, status entity.Status) {
	t.Helper()

	require.Eventually(t, func() bool {
		return that.controller.Status() == status
	}, waitFor, tick, "status never became %s", status)
}

func TestMatch_Local(t *testing.T) {
	t.Run("Two local players alternate until black wins", func(t *testing.T) {
		// Given: a local game on a 15x15 board
		f := newFixture(t, "alice", MatchConfig{})
		require.NoError(t, f.match.StartLocal())

		// When: black builds a row while white plays elsewhere
		for i := 0; i < 4; i++ {
			f.play(t, i, 0)
			f.play(t, i, 5)
		}
		f.play(t, 4, 0)

		// Then: black wins and the board holds nine stones
		f.waitStatus(t, entity.StatusFinished)
		assert.Equal(t, entity.Win(entity.Black), f.controller.CurrentOutcome())
		assert.Len(t, f.match.Snapshot().History, 9)
		assert.Eventually(t, func() bool { return f.statuses.contains("alice (black) wins") }, waitFor, tick)
	})

	t.Run("A move after the game ended is refused", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{BoardSize: 5, Rules: gomoku.Rules{WinLength: 3}})
		require.NoError(t, f.match.StartLocal())

		f.play(t, 0, 0)
		f.play(t, 0, 1)
		f.play(t, 1, 0)
		f.play(t, 1, 1)
		f.play(t, 2, 0)
		f.waitStatus(t, entity.StatusFinished)

		assert.Never(t, func() bool {
			return f.match.SubmitLocalMove(4, 4) == nil
		}, 100*time.Millisecond, tick)
	})

	t.Run("Restart clears the board and black moves again", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{})
		require.NoError(t, f.match.StartLocal())
		f.play(t, 7, 7)

		require.NoError(t, f.match.Restart())

		snapshot := f.match.Snapshot()
		assert.Empty(t, snapshot.History)
		assert.Equal(t, entity.Black, snapshot.Turn)
		f.play(t, 7, 7)
	})

	t.Run("Cancel returns to waiting", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{})
		require.NoError(t, f.match.StartLocal())
		f.play(t, 7, 7)

		require.NoError(t, f.match.Cancel())

		assert.Equal(t, entity.StatusWaiting, f.controller.Status())
		assert.Equal(t, entity.StateWait, f.match.State().Kind)
		require.ErrorIs(t, f.match.SubmitLocalMove(3, 3), ErrNoLocalTurn)
	})

	t.Run("Chat needs a peer", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{})
		require.NoError(t, f.match.StartLocal())

		require.ErrorIs(t, f.match.SendMessage("hi"), ErrNotConnected)
		require.ErrorIs(t, f.match.Disconnect(), ErrNotConnected)
	})

	t.Run("Settings change restarts on the new board", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{})
		require.NoError(t, f.match.StartLocal())

		require.NoError(t, f.match.ApplySettings(9, gomoku.Rules{WinLength: 4}))

		assert.Equal(t, 9, f.controller.Size())
		assert.Equal(t, 4, f.controller.Rules().WinLength)
		require.Error(t, f.match.ApplySettings(30, gomoku.Rules{WinLength: 5}))
		require.Error(t, f.match.ApplySettings(9, gomoku.Rules{WinLength: 10}))
	})
}

func TestMatch_Computer(t *testing.T) {
	t.Run("The computer answers every human move", func(t *testing.T) {
		// Given: a computer playing white from a fixed script
		strategy := &scriptedStrategy{moves: [][2]int{{0, 1}, {1, 1}, {2, 1}, {3, 1}}}
		f := newFixture(t, "alice", MatchConfig{ComputerColor: entity.White, Strategy: strategy})
		require.NoError(t, f.match.StartComputer())

		// When: the human plays five in a row
		for i := 0; i < 5; i++ {
			f.play(t, i, 0)
		}

		// Then: the human wins after the computer answered four times
		f.waitStatus(t, entity.StatusFinished)
		assert.Equal(t, entity.Win(entity.Black), f.controller.CurrentOutcome())
		assert.Len(t, f.match.Snapshot().History, 9)

		computer, ok := f.match.Player(entity.White)
		require.True(t, ok)
		assert.Eventually(t, func() bool {
			last, ok := computer.LastMove()
			return ok && last == entity.Move{Column: 3, Row: 1, Color: entity.White}
		}, waitFor, tick)
	})

	t.Run("The computer opens when it plays black", func(t *testing.T) {
		strategy := &scriptedStrategy{moves: [][2]int{{7, 7}}}
		f := newFixture(t, "alice", MatchConfig{ComputerColor: entity.Black, Strategy: strategy})
		require.NoError(t, f.match.StartComputer())

		require.Eventually(t, func() bool {
			return len(f.match.Snapshot().History) == 1
		}, waitFor, tick)
		f.play(t, 0, 0)
	})
}

func listen(t *testing.T) *session.Server {
	t.Helper()

	srv, err := session.Listen(testLogger(), session.ServerConfig{
		Addr:             "127.0.0.1:0",
		Welcome:          []string{"welcome to gomoku"},
		HandshakeTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

func serve(t *testing.T, host *fixture, srv *session.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = host.match.Serve(ctx, srv)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func connect(t *testing.T) (*fixture, *fixture, *session.Server) {
	t.Helper()

	host := newFixture(t, "alice", MatchConfig{})
	guest := newFixture(t, "bob", MatchConfig{})

	srv := listen(t)
	serve(t, host, srv)

	require.NoError(t, guest.match.Join(context.Background(), srv.Addr()))
	require.Eventually(t, func() bool {
		return host.match.State().Kind == entity.StatePlaying
	}, waitFor, tick)

	return host, guest, srv
}

func TestMatch_Network(t *testing.T) {
	t.Run("Host and guest play a full game over loopback", func(t *testing.T) {
		// Given: a host and a guest connected over TCP
		host, guest, _ := connect(t)
		assert.Equal(t, ModeServer, host.match.Mode())
		assert.Equal(t, ModeClient, guest.match.Mode())
		assert.True(t, guest.statuses.contains("welcome to gomoku"))

		// When: the host plays black in a row and the guest answers
		for i := 0; i < 4; i++ {
			host.play(t, i, 0)
			guest.play(t, i, 1)
		}
		host.play(t, 4, 0)

		// Then: both ends agree on the winner and the move list
		host.waitStatus(t, entity.StatusFinished)
		guest.waitStatus(t, entity.StatusFinished)
		assert.Equal(t, entity.Win(entity.Black), host.controller.CurrentOutcome())
		assert.Equal(t, entity.Win(entity.Black), guest.controller.CurrentOutcome())
		assert.Equal(t, host.match.Snapshot().History, guest.match.Snapshot().History)
	})

	t.Run("A guest cannot move out of turn", func(t *testing.T) {
		host, guest, _ := connect(t)

		assert.Never(t, func() bool {
			return guest.match.SubmitLocalMove(0, 0) == nil
		}, 100*time.Millisecond, tick)
		host.play(t, 0, 0)
		guest.play(t, 1, 1)
	})

	t.Run("Chat lines reach the peer", func(t *testing.T) {
		host, guest, _ := connect(t)

		require.NoError(t, guest.match.SendMessage("good luck"))

		assert.Eventually(t, func() bool { return host.statuses.contains("bob: good luck") }, waitFor, tick)
	})

	t.Run("Cancel and restart are mirrored on the peer", func(t *testing.T) {
		host, guest, _ := connect(t)
		host.play(t, 7, 7)
		guest.play(t, 8, 8)

		require.NoError(t, host.match.Cancel())
		guest.waitStatus(t, entity.StatusWaiting)

		require.NoError(t, host.match.Restart())
		guest.waitStatus(t, entity.StatusOngoing)
		assert.Empty(t, guest.match.Snapshot().History)

		host.play(t, 7, 7)
		guest.play(t, 8, 8)
	})

	t.Run("Host settings are applied on both ends", func(t *testing.T) {
		host, guest, srv := connect(t)

		require.ErrorIs(t, guest.match.ApplySettings(9, gomoku.Rules{WinLength: 4}), ErrNotHost)
		require.NoError(t, host.match.ApplySettings(9, gomoku.Rules{WinLength: 4}))

		require.Eventually(t, func() bool {
			return guest.controller.Size() == 9 && guest.controller.Status().IsOngoing()
		}, waitFor, tick)
		assert.Equal(t, 4, guest.controller.Rules().WinLength)
		assert.Equal(t, 9, srv.Settings().BoardSize)

		host.play(t, 8, 8)
		guest.play(t, 0, 0)
	})

	t.Run("A disconnect leaves both ends waiting", func(t *testing.T) {
		host, guest, _ := connect(t)
		host.play(t, 7, 7)

		require.NoError(t, guest.match.Disconnect())

		host.waitStatus(t, entity.StatusWaiting)
		guest.waitStatus(t, entity.StatusWaiting)
		assert.Eventually(t, func() bool { return host.statuses.contains("connection lost") }, waitFor, tick)
		assert.Equal(t, entity.StateWait, host.match.State().Kind)
	})

	t.Run("The host keeps serving after a guest leaves", func(t *testing.T) {
		host, guest, srv := connect(t)
		require.NoError(t, guest.match.Disconnect())
		host.waitStatus(t, entity.StatusWaiting)

		other := newFixture(t, "carol", MatchConfig{})
		require.NoError(t, other.match.Join(context.Background(), srv.Addr()))

		host.waitStatus(t, entity.StatusOngoing)
		host.play(t, 0, 0)
		other.play(t, 1, 1)
	})

	t.Run("A redirect moves the guest to another host", func(t *testing.T) {
		first, guest, _ := connect(t)

		second := newFixture(t, "dave", MatchConfig{})
		srv := listen(t)
		serve(t, second, srv)

		require.NoError(t, first.match.Redirect(srv.Addr()))

		require.Eventually(t, func() bool {
			return second.match.State().Kind == entity.StatePlaying
		}, waitFor, tick)
		second.play(t, 0, 0)
		guest.play(t, 1, 1)
	})

	t.Run("Join fails when nobody listens", func(t *testing.T) {
		f := newFixture(t, "bob", MatchConfig{})
		srv := listen(t)
		addr := srv.Addr()
		require.NoError(t, srv.Close())

		err := f.match.Join(context.Background(), addr)

		require.ErrorIs(t, err, apperror.ErrTransport)
		assert.Equal(t, ModeIdle, f.match.Mode())
	})
}

// peerRecorder stands in for the other end when a test drives the wire by hand.
type peerRecorder struct {
	commands chan protocol.Command
}

func newPeerRecorder() *peerRecorder {
	return &peerRecorder{commands: make(chan protocol.Command, 16)}
}

func (that *peerRecorder) HandleCommand(cmd protocol.Command) error {
	that.commands <- cmd
	return nil
}

func (that *peerRecorder) HandleDisconnect(error) {}

func (that *peerRecorder) next(t *testing.T) protocol.Command {
	t.Helper()

	select {
	case cmd := <-that.commands:
		return cmd
	case <-time.After(waitFor):
		t.Fatal("nothing received from the match")
		return nil
	}
}

// dialRaw joins srv as a bare session without a Match behind it.
func dialRaw(t *testing.T, addr string) (*session.Conn, *peerRecorder) {
	t.Helper()

	conn, _, err := session.Dial(context.Background(), testLogger(), session.DialConfig{
		Addr:             addr,
		Name:             "raw guest",
		HandshakeTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	recorder := newPeerRecorder()
	require.NoError(t, conn.Start(recorder))

	return conn, recorder
}

// hostedBy serves f on a fresh listener and connects a bare guest to it.
func hostedBy(t *testing.T, f *fixture) (*session.Conn, *peerRecorder) {
	t.Helper()

	srv := listen(t)
	serve(t, f, srv)

	conn, recorder := dialRaw(t, srv.Addr())
	require.Eventually(t, func() bool {
		return f.match.State().Kind == entity.StatePlaying
	}, waitFor, tick)

	return conn, recorder
}

func assertStillConnected(t *testing.T, f *fixture) {
	t.Helper()

	assert.Never(t, func() bool {
		return f.statuses.contains("connection lost")
	}, 150*time.Millisecond, tick)
	assert.Equal(t, entity.StatePlaying, f.match.State().Kind)
}

func TestMatch_CrossingMoves(t *testing.T) {
	t.Run("A host move crossing the guest's restart stays out of the new game", func(t *testing.T) {
		// Given: a guest joined to a bare host session
		srv := listen(t)
		srv.SetSettings(protocol.Settings{BoardSize: 15, WinLength: 5, HostName: "raw host"})

		accepted := make(chan *session.Conn, 1)
		go func() {
			conn, _, err := srv.Accept(context.Background())
			if err != nil {
				accepted <- nil
				return
			}
			accepted <- conn
		}()

		guest := newFixture(t, "bob", MatchConfig{})
		require.NoError(t, guest.match.Join(context.Background(), srv.Addr()))

		host := <-accepted
		require.NotNil(t, host)
		t.Cleanup(func() { _ = host.Close() })

		recorder := newPeerRecorder()
		require.NoError(t, host.Start(recorder))

		// When: the guest restarts while the host's opening move is already on the wire
		require.NoError(t, guest.match.Restart())
		require.NoError(t, host.Send(protocol.Move{Column: 7, Row: 7, Generation: 0}))

		// Then: the new game does not receive the old stone
		assert.Never(t, func() bool {
			return len(guest.match.Snapshot().History) > 0
		}, 150*time.Millisecond, tick)
		assert.Equal(t, entity.Black, guest.controller.CurrentTurn())

		// When: the host sees the restart and opens the new game
		assert.Equal(t, protocol.NewRestart(""), recorder.next(t))
		require.NoError(t, host.Send(protocol.Move{Column: 7, Row: 7, Generation: 1}))

		// Then: that move is played on the guest
		require.Eventually(t, func() bool {
			return len(guest.match.Snapshot().History) == 1
		}, waitFor, tick)
		assert.Equal(t, entity.Move{Column: 7, Row: 7, Color: entity.Black}, guest.match.Snapshot().History[0])
		assertStillConnected(t, guest)
	})

	t.Run("A guest move crossing the host's restart keeps the session", func(t *testing.T) {
		// Given: a host that has opened against a bare guest
		host := newFixture(t, "alice", MatchConfig{})
		guest, recorder := hostedBy(t, host)

		host.play(t, 0, 0)
		assert.Equal(t, protocol.Move{Column: 0, Row: 0, Generation: 0}, recorder.next(t))

		// When: the host restarts before the guest's answer arrives
		require.NoError(t, host.match.Restart())
		require.NoError(t, guest.Send(protocol.Move{Column: 1, Row: 1, Generation: 0}))

		// Then: the answer is dropped and the connection survives
		assertStillConnected(t, host)
		assert.Empty(t, host.match.Snapshot().History)
		assert.Equal(t, entity.Black, host.controller.CurrentTurn())

		// And: play continues in the new game
		assert.Equal(t, protocol.NewRestart(""), recorder.next(t))
		host.play(t, 7, 7)
		assert.Equal(t, protocol.Move{Column: 7, Row: 7, Generation: 1}, recorder.next(t))
		require.NoError(t, guest.Send(protocol.Move{Column: 8, Row: 8, Generation: 1}))

		require.Eventually(t, func() bool {
			return len(host.match.Snapshot().History) == 2
		}, waitFor, tick)
	})

	t.Run("A guest move from a larger board survives the host shrinking it", func(t *testing.T) {
		// Given: a 15x15 game against a bare guest
		host := newFixture(t, "alice", MatchConfig{})
		guest, recorder := hostedBy(t, host)

		host.play(t, 0, 0)
		recorder.next(t)

		// When: the host switches to 9x9 while the guest answers at (12, 12)
		require.NoError(t, host.match.ApplySettings(9, gomoku.Rules{WinLength: 4}))
		require.NoError(t, guest.Send(protocol.Move{Column: 12, Row: 12, Generation: 0}))

		// Then: the old answer is dropped and the new board is untouched
		assertStillConnected(t, host)
		assert.Equal(t, 9, host.controller.Size())
		assert.Empty(t, host.match.Snapshot().History)

		settings, ok := recorder.next(t).(protocol.Settings)
		require.True(t, ok)
		assert.Equal(t, 9, settings.BoardSize)
		assert.Equal(t, protocol.NewState(entity.StatePlaying), recorder.next(t))

		host.play(t, 4, 4)
		assert.Equal(t, protocol.Move{Column: 4, Row: 4, Generation: 1}, recorder.next(t))
		require.NoError(t, guest.Send(protocol.Move{Column: 5, Row: 5, Generation: 1}))

		require.Eventually(t, func() bool {
			return len(host.match.Snapshot().History) == 2
		}, waitFor, tick)
	})

	t.Run("A move that is wrong in the current game still drops the peer", func(t *testing.T) {
		host := newFixture(t, "alice", MatchConfig{})
		guest, _ := hostedBy(t, host)

		// When: the guest moves before black has opened
		require.NoError(t, guest.Send(protocol.Move{Column: 3, Row: 3, Generation: 0}))

		// Then: it is treated as a protocol error
		assert.Eventually(t, func() bool {
			return host.statuses.contains("connection lost")
		}, waitFor, tick)
		host.waitStatus(t, entity.StatusWaiting)
	})

	t.Run("Restarts from both ends at once leave equal boards", func(t *testing.T) {
		host, guest, _ := connect(t)
		host.play(t, 7, 7)
		require.Eventually(t, func() bool {
			return len(guest.match.Snapshot().History) == 1
		}, waitFor, tick)

		var wg sync.WaitGroup
		for _, f := range []*fixture{host, guest} {
			f := f
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, f.match.Restart())
			}()
		}
		wg.Wait()

		require.Eventually(t, func() bool {
			return host.statuses.contains("peer restarted the game") && guest.statuses.contains("peer restarted the game")
		}, waitFor, tick)
		assert.Empty(t, host.match.Snapshot().History)
		assert.Empty(t, guest.match.Snapshot().History)

		host.play(t, 0, 0)
		guest.play(t, 1, 1)
		require.Eventually(t, func() bool {
			return len(host.match.Snapshot().History) == 2
		}, waitFor, tick)
		assert.Equal(t, host.match.Snapshot().History, guest.match.Snapshot().History)
	})
}

func TestMatch_Resume(t *testing.T) {
	t.Run("Replays the stored moves", func(t *testing.T) {
		// Given: a stored game with three moves
		repo := &mockSessionRepo{}
		repo.On("GetByID", mock.Anything, "g1").Return(&entity.SessionSnapshot{
			ID:        "g1",
			BoardSize: 9,
			WinLength: 5,
			Moves: []entity.Move{
				{Column: 4, Row: 4, Color: entity.Black},
				{Column: 5, Row: 5, Color: entity.White},
				{Column: 3, Row: 3, Color: entity.Black},
			},
			Turn: entity.White,
		}, nil).Once()
		repo.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
		repo.On("DeleteByID", mock.Anything, mock.Anything).Return(nil).Maybe()

		f := newFixture(t, "alice", MatchConfig{Sessions: repo})

		// When: resuming it
		require.NoError(t, f.match.Resume(context.Background(), "g1"))

		// Then: the board continues where it stopped
		snapshot := f.match.Snapshot()
		assert.Equal(t, "g1", f.match.ID())
		assert.Equal(t, 9, snapshot.Size)
		assert.Len(t, snapshot.History, 3)
		assert.Equal(t, entity.White, snapshot.Turn)
		f.play(t, 0, 0)
	})

	t.Run("Fails for an unknown session", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("GetByID", mock.Anything, "missing").Return(nil, apperror.ErrNotFound).Once()

		f := newFixture(t, "alice", MatchConfig{Sessions: repo})

		err := f.match.Resume(context.Background(), "missing")

		require.ErrorIs(t, err, apperror.ErrNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("Fails without a session store", func(t *testing.T) {
		f := newFixture(t, "alice", MatchConfig{})

		require.Error(t, f.match.Resume(context.Background(), "g1"))
	})
}

func TestRecorder(t *testing.T) {
	newGame := func(t *testing.T) *gomoku.GameController {
		t.Helper()

		controller := gomoku.NewGameController(testLogger(), gomoku.Rules{WinLength: 4, ExactLength: true})
		t.Cleanup(controller.Close)
		require.NoError(t, controller.StartGame(9, entity.Black))

		return controller
	}

	t.Run("Saves the game after every stone", func(t *testing.T) {
		// Given: a tracked game with one move
		controller := newGame(t)
		_, err := controller.SubmitMove(4, 4, entity.Black)
		require.NoError(t, err)

		repo := &mockSessionRepo{}
		repo.On("Save", mock.Anything, mock.MatchedBy(func(s *entity.SessionSnapshot) bool {
			return s.ID == "g1" && s.BoardSize == 9 && s.WinLength == 4 && s.ExactLength &&
				len(s.Moves) == 1 && s.Turn == entity.White
		})).Return(nil).Once()

		recorder := NewRecorder(testLogger(), repo, controller)
		recorder.Track("g1")

		// When: the stone is reported
		recorder.OnCellChanged(entity.BoardField{Column: 4, Row: 4, State: entity.Black})

		// Then: the snapshot is saved
		repo.AssertExpectations(t)
	})

	t.Run("Storage errors are only logged", func(t *testing.T) {
		controller := newGame(t)
		repo := &mockSessionRepo{}
		repo.On("Save", mock.Anything, mock.Anything).Return(errRedisDown).Once()

		recorder := NewRecorder(testLogger(), repo, controller)
		recorder.Track("g1")

		assert.NotPanics(t, func() {
			recorder.OnCellChanged(entity.BoardField{Column: 0, Row: 0, State: entity.Black})
		})
		repo.AssertExpectations(t)
	})

	t.Run("A finished game is deleted", func(t *testing.T) {
		controller := newGame(t)
		repo := &mockSessionRepo{}
		repo.On("DeleteByID", mock.Anything, "g1").Return(apperror.ErrNotFound).Once()

		recorder := NewRecorder(testLogger(), repo, controller)
		recorder.Track("g1")

		recorder.OnOutcome(entity.Win(entity.White))
		recorder.OnOutcome(entity.Ongoing())

		repo.AssertExpectations(t)
	})

	t.Run("Nothing is stored before Track", func(t *testing.T) {
		controller := newGame(t)
		repo := &mockSessionRepo{}

		recorder := NewRecorder(testLogger(), repo, controller)
		recorder.OnCellChanged(entity.BoardField{Column: 0, Row: 0, State: entity.Black})
		recorder.OnBoardReset(9)

		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
	})
}
