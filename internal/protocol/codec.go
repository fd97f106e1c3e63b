package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rocketscienceinc/gomoku/internal/entity"
)

// column, row and game generation, 4 bytes each.
const movePayloadSize = 12

// frame is one encoded command on the wire.
type frame struct {
	tag     CommandType
	payload []byte
}

// Marshal returns the payload bytes of cmd, without the frame header.
func Marshal(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Ping:
		return nil, nil
	case Move:
		if c.Column < 0 || c.Row < 0 || c.Column > math.MaxInt32 || c.Row > math.MaxInt32 {
			return nil, fmt.Errorf("%w: move (%d, %d)", ErrMalformedPayload, c.Column, c.Row)
		}

		payload := make([]byte, movePayloadSize)
		binary.BigEndian.PutUint32(payload[0:4], uint32(c.Column))
		binary.BigEndian.PutUint32(payload[4:8], uint32(c.Row))
		binary.BigEndian.PutUint32(payload[8:12], c.Generation)

		return payload, nil
	case Message:
		if !utf8.ValidString(c.Text) {
			return nil, fmt.Errorf("%w: message is not valid UTF-8", ErrMalformedPayload)
		}

		return []byte(c.Text), nil
	case State:
		payload := []byte{byte(c.State.Kind)}
		if c.State.Kind == entity.StateRestart {
			payload = append(payload, c.State.ServerAddress...)
		}

		return payload, nil
	case Settings:
		payload, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}

		return payload, nil
	case Handshake:
		return append([]byte{c.Version}, c.Name...), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// Writer encodes commands onto a stream. It is not safe for concurrent use.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write sends cmd as a single frame and flushes it.
func (that *Writer) Write(cmd Command) error {
	payload, err := Marshal(cmd)
	if err != nil {
		return err
	}

	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	if err = that.writeFrame(frame{tag: cmd.Type(), payload: payload}); err != nil {
		return err
	}

	return nil
}

func (that *Writer) writeFrame(f frame) error {
	header := make([]byte, headerSize)
	header[0] = byte(f.tag)
	binary.BigEndian.PutUint32(header[1:], uint32(len(f.payload)))

	if _, err := that.w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if _, err := that.w.Write(f.payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	if err := that.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	return nil
}

// Reader decodes commands from a stream. It is not safe for concurrent use,
// except for SetBoardSize.
type Reader struct {
	r         *bufio.Reader
	boardSize atomic.Int32
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// SetBoardSize sets the negotiated size MOVE coordinates are checked against.
// Zero disables the check.
func (that *Reader) SetBoardSize(size int) {
	that.boardSize.Store(int32(size))
}

// Read blocks until one full command is available.
// A clean end of stream before any header byte returns io.EOF.
func (that *Reader) Read() (Command, error) {
	f, err := that.readFrame()
	if err != nil {
		return nil, err
	}

	return that.decode(f)
}

// ReadBatch reads commands until the PING sentinel and returns everything before it.
func (that *Reader) ReadBatch() ([]Command, error) {
	var batch []Command
	for {
		cmd, err := that.Read()
		if err != nil {
			return batch, err
		}

		if cmd.Type() == CmdPing {
			return batch, nil
		}

		batch = append(batch, cmd)
	}
}

func (that *Reader) readFrame() (frame, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(that.r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return frame{}, io.EOF
		}

		return frame{}, fmt.Errorf("failed to read header: %w", err)
	}

	tag := CommandType(header[0])
	if tag > CmdHandshake {
		return frame{}, fmt.Errorf("%w: tag %d", ErrUnknownCommand, header[0])
	}

	size := binary.BigEndian.Uint32(header[1:])
	if size > MaxPayloadSize {
		return frame{}, fmt.Errorf("%w: %s with %d bytes", ErrPayloadTooLarge, tag, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(that.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return frame{}, fmt.Errorf("failed to read payload: %w", err)
	}

	return frame{tag: tag, payload: payload}, nil
}

func (that *Reader) decode(f frame) (Command, error) {
	switch f.tag {
	case CmdPing:
		if len(f.payload) != 0 {
			return nil, fmt.Errorf("%w: PING with %d bytes", ErrMalformedPayload, len(f.payload))
		}

		return Ping{}, nil
	case CmdMove:
		return that.decodeMove(f.payload)
	case CmdMessage:
		if !utf8.Valid(f.payload) {
			return nil, fmt.Errorf("%w: message is not valid UTF-8", ErrMalformedPayload)
		}

		return Message{Text: string(f.payload)}, nil
	case CmdState:
		return decodeState(f.payload)
	case CmdSettings:
		return decodeSettings(f.payload)
	case CmdHandshake:
		if len(f.payload) < 1 || !utf8.Valid(f.payload[1:]) {
			return nil, fmt.Errorf("%w: bad handshake", ErrMalformedPayload)
		}

		return Handshake{Version: f.payload[0], Name: string(f.payload[1:])}, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCommand, uint8(f.tag))
	}
}

func (that *Reader) decodeMove(payload []byte) (Command, error) {
	if len(payload) != movePayloadSize {
		return nil, fmt.Errorf("%w: MOVE with %d bytes", ErrMalformedPayload, len(payload))
	}

	column := int32(binary.BigEndian.Uint32(payload[0:4]))
	row := int32(binary.BigEndian.Uint32(payload[4:8]))

	if column < 0 || row < 0 {
		return nil, fmt.Errorf("%w: move (%d, %d)", ErrMalformedPayload, column, row)
	}

	if size := that.boardSize.Load(); size > 0 && (column >= size || row >= size) {
		return nil, fmt.Errorf("%w: move (%d, %d) outside %dx%d board", ErrMalformedPayload, column, row, size, size)
	}

	return Move{Column: int(column), Row: int(row), Generation: binary.BigEndian.Uint32(payload[8:12])}, nil
}

func decodeState(payload []byte) (Command, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: empty STATE", ErrMalformedPayload)
	}

	kind := entity.GameStateKind(payload[0])
	address := payload[1:]

	switch kind {
	case entity.StateWait, entity.StatePlaying:
		if len(address) != 0 {
			return nil, fmt.Errorf("%w: %s carries an address", ErrMalformedPayload, kind)
		}
	case entity.StateRestart:
		if !utf8.Valid(address) {
			return nil, fmt.Errorf("%w: restart address is not valid UTF-8", ErrMalformedPayload)
		}
	default:
		return nil, fmt.Errorf("%w: unknown state %d", ErrMalformedPayload, payload[0])
	}

	return State{State: entity.GameState{Kind: kind, ServerAddress: string(address)}}, nil
}

func decodeSettings(payload []byte) (Command, error) {
	var settings Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil, fmt.Errorf("%w: settings: %w", ErrMalformedPayload, err)
	}

	if settings.BoardSize < entity.MinBoardSize || settings.BoardSize > entity.MaxBoardSize {
		return nil, fmt.Errorf("%w: board size %d", ErrMalformedPayload, settings.BoardSize)
	}

	if settings.WinLength <= 0 || settings.WinLength > settings.BoardSize {
		return nil, fmt.Errorf("%w: win length %d", ErrMalformedPayload, settings.WinLength)
	}

	if settings.HeartbeatMillis < 0 {
		return nil, fmt.Errorf("%w: heartbeat %dms", ErrMalformedPayload, settings.HeartbeatMillis)
	}

	return settings, nil
}
