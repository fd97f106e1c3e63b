package gomoku

import "github.com/rocketscienceinc/gomoku/internal/entity"

const DefaultWinLength = 5

// Rules configures what counts as a winning line.
type Rules struct {
	WinLength int
	// ExactLength rejects overlines: a run longer than WinLength does not win.
	ExactLength bool
}

func DefaultRules() Rules {
	return Rules{WinLength: DefaultWinLength}
}

func (that Rules) wins(run int) bool {
	if that.ExactLength {
		return run == that.WinLength
	}

	return run >= that.WinLength
}

// Grid is the read side of the board the detector needs.
type Grid interface {
	Size() int
	Get(column, row int) entity.FieldState
	Full() bool
}

// axis pairs: horizontal, vertical, diagonal, anti-diagonal.
var directions = [4][2]int{
	{1, 0},
	{0, 1},
	{1, 1},
	{1, -1},
}

// Evaluate decides the outcome after last was placed on board.
// Only cells on the four lines through last are inspected, at most WinLength in each direction.
func Evaluate(board Grid, last entity.Move, rules Rules) entity.Outcome {
	if rules.WinLength <= 0 {
		rules.WinLength = DefaultWinLength
	}

	if last.Color.IsStone() && board.Get(last.Column, last.Row) == last.Color {
		for _, d := range directions {
			run := 1 +
				countRun(board, last, d[0], d[1], rules.WinLength) +
				countRun(board, last, -d[0], -d[1], rules.WinLength)

			if rules.wins(run) {
				return entity.Win(last.Color)
			}
		}
	}

	if board.Full() {
		return entity.Draw()
	}

	return entity.Ongoing()
}

// countRun counts same-colored stones from last in direction (dc, dr), excluding last itself.
// Scanning stops after limit cells so the cost never depends on board fill.
func countRun(board Grid, last entity.Move, dc, dr, limit int) int {
	size := board.Size()
	count := 0

	column, row := last.Column+dc, last.Row+dr
	for count < limit && column >= 0 && column < size && row >= 0 && row < size {
		if board.Get(column, row) != last.Color {
			break
		}

		count++
		column += dc
		row += dr
	}

	return count
}
