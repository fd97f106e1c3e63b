package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/gomoku/internal/gomoku"
)

var ErrUnknownCommand = errors.New("unknown command")

const help = `commands:
  <column> <row>              place a stone
  say <text>                  send a chat line
  restart                     start over with black to move
  cancel                      end the game
  settings <size> <win> [exact]
  disconnect                  leave the network game
  quit`

type game interface {
	SubmitLocalMove(column, row int) error
	SendMessage(text string) error
	Restart() error
	Cancel() error
	ApplySettings(size int, rules gomoku.Rules) error
	Disconnect() error
}

// Input turns typed lines into match actions.
type Input struct {
	logger   *slog.Logger
	game     game
	renderer *Renderer
}

func NewInput(logger *slog.Logger, game game, renderer *Renderer) *Input {
	return &Input{
		logger:   logger.With("component", "console"),
		game:     game,
		renderer: renderer,
	}
}

// Run reads commands until quit, end of input or ctx cancellation.
func (that *Input) Run(ctx context.Context, in io.Reader) error {
	log := that.logger.With("method", "Run")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "quit" || line == "exit" {
			return nil
		}

		if err := that.Execute(line); err != nil {
			log.Debug("command failed", "line", line, "error", err)
			that.renderer.Println("! " + err.Error())
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	return nil
}

// Execute runs one command line.
func (that *Input) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(line, "say"))
		if text == "" {
			return fmt.Errorf("%w: say needs text", ErrUnknownCommand)
		}

		return that.game.SendMessage(text)
	case "restart":
		return that.game.Restart()
	case "cancel":
		return that.game.Cancel()
	case "disconnect":
		return that.game.Disconnect()
	case "settings":
		return that.settings(fields[1:])
	case "help":
		that.renderer.Println(help)
		return nil
	}

	if len(fields) == 2 {
		column, errColumn := strconv.Atoi(fields[0])
		row, errRow := strconv.Atoi(fields[1])
		if errColumn == nil && errRow == nil {
			return that.game.SubmitLocalMove(column, row)
		}
	}

	return fmt.Errorf("%w: %q, type help", ErrUnknownCommand, line)
}

func (that *Input) settings(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: settings <size> <win> [exact]", ErrUnknownCommand)
	}

	size, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[0], err)
	}

	win, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid win length %q: %w", args[1], err)
	}

	exact := len(args) == 3 && args[2] == "exact"

	return that.game.ApplySettings(size, gomoku.Rules{WinLength: win, ExactLength: exact})
}
