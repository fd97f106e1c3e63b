package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/entity"
)

// Renderer draws the board as text after every change. Columns run left to right, rows top to bottom.
type Renderer struct {
	mu   sync.Mutex
	out  io.Writer
	size int
	grid []entity.FieldState
	last *entity.BoardField
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (that *Renderer) OnBoardReset(size int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.size = size
	that.grid = make([]entity.FieldState, size*size)
	that.last = nil
	that.draw()
}

func (that *Renderer) OnCellChanged(field entity.BoardField) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if field.Column < 0 || field.Row < 0 || field.Column >= that.size || field.Row >= that.size {
		return
	}

	that.grid[field.Row*that.size+field.Column] = field.State
	if field.State.IsStone() {
		that.last = &field
	}
	that.draw()
}

func (that *Renderer) OnTurnChanged(color entity.FieldState) {
	if !color.IsStone() {
		return
	}

	that.println("turn: " + color.String())
}

func (that *Renderer) OnOutcome(outcome entity.Outcome) {
	if outcome.IsTerminal() {
		that.println("result: " + outcome.String())
	}
}

func (that *Renderer) OnStatus(text string) {
	that.println("* " + text)
}

// Println writes a line that is not a board event, such as a rejected command.
func (that *Renderer) Println(text string) {
	that.println(text)
}

func (that *Renderer) println(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, _ = fmt.Fprintln(that.out, text)
}

func (that *Renderer) draw() {
	if that.size == 0 {
		return
	}

	var sb strings.Builder

	sb.WriteString("   ")
	for column := 0; column < that.size; column++ {
		fmt.Fprintf(&sb, "%2d", column)
	}
	sb.WriteByte('\n')

	for row := 0; row < that.size; row++ {
		fmt.Fprintf(&sb, "%2d ", row)
		for column := 0; column < that.size; column++ {
			sb.WriteByte(' ')
			sb.WriteByte(that.symbol(column, row))
		}
		sb.WriteByte('\n')
	}

	_, _ = io.WriteString(that.out, sb.String())
}

// symbol marks the latest stone in upper case.
func (that *Renderer) symbol(column, row int) byte {
	latest := that.last != nil && that.last.Column == column && that.last.Row == row

	switch that.grid[row*that.size+column] {
	case entity.Black:
		if latest {
			return 'X'
		}
		return 'x'
	case entity.White:
		if latest {
			return 'O'
		}
		return 'o'
	default:
		return '.'
	}
}
