package apperror

import "errors"

// validation errors, recovered locally by the caller.
var (
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrOutOfBounds       = errors.New("cell is out of bounds")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrGameNotInProgress = errors.New("game is not in progress")
)

// session errors, fatal to the connection they occur on.
var (
	ErrProtocol      = errors.New("protocol error")
	ErrTransport     = errors.New("transport error")
	ErrSessionClosed = errors.New("session closed")
)

var ErrNotFound = errors.New("not found")
