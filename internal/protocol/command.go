package protocol

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku/internal/apperror"
	"github.com/rocketscienceinc/gomoku/internal/entity"
)

const (
	Version uint8 = 2

	MaxPayloadSize = 4096

	// tag (1 byte) + payload length (4 bytes, big-endian).
	headerSize = 5
)

var (
	ErrUnknownCommand   = fmt.Errorf("%w: unknown command", apperror.ErrProtocol)
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", apperror.ErrProtocol)
	ErrPayloadTooLarge  = fmt.Errorf("%w: payload too large", apperror.ErrProtocol)
	ErrVersionMismatch  = fmt.Errorf("%w: unsupported protocol version", apperror.ErrProtocol)
	ErrUnexpectedCmd    = fmt.Errorf("%w: unexpected command", apperror.ErrProtocol)
)

type CommandType uint8

const (
	CmdPing CommandType = iota
	CmdMove
	CmdMessage
	CmdState
	CmdSettings
	CmdHandshake
)

func (that CommandType) String() string {
	switch that {
	case CmdPing:
		return "PING"
	case CmdMove:
		return "MOVE"
	case CmdMessage:
		return "MESSAGE"
	case CmdState:
		return "STATE"
	case CmdSettings:
		return "SETTINGS"
	case CmdHandshake:
		return "SOCKET_HANDSHAKE"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint8(that))
	}
}

// Command is one discrete message exchanged between host and peer.
type Command interface {
	Type() CommandType
}

// Ping carries no data. It marks the end of a batch and keeps an idle connection alive.
type Ping struct{}

// Move carries the generation of the game it was made in. Both ends count the
// games started on a connection the same way, so a move from a replaced game is recognized.
type Move struct {
	Column     int
	Row        int
	Generation uint32
}

type Message struct {
	Text string
}

type State struct {
	State entity.GameState
}

// Settings is sent by the host so both ends build identical boards.
// Unknown JSON fields are ignored by the receiver.
type Settings struct {
	BoardSize   int    `json:"board_size"`
	WinLength   int    `json:"win_length"`
	ExactLength bool   `json:"exact_length"`
	HostName    string `json:"host_name,omitempty"`

	// HeartbeatMillis is the keepalive interval both ends use. Zero disables it.
	HeartbeatMillis int64 `json:"heartbeat_ms,omitempty"`
}

func (that Settings) Heartbeat() time.Duration {
	return time.Duration(that.HeartbeatMillis) * time.Millisecond
}

type Handshake struct {
	Version uint8
	Name    string
}

func (Ping) Type() CommandType      { return CmdPing }
func (Move) Type() CommandType      { return CmdMove }
func (Message) Type() CommandType   { return CmdMessage }
func (State) Type() CommandType     { return CmdState }
func (Settings) Type() CommandType  { return CmdSettings }
func (Handshake) Type() CommandType { return CmdHandshake }

func NewState(kind entity.GameStateKind) State {
	return State{State: entity.GameState{Kind: kind}}
}

func NewRestart(serverAddress string) State {
	return State{State: entity.GameState{Kind: entity.StateRestart, ServerAddress: serverAddress}}
}
