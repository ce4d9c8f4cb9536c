package handlers

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/cory-johannsen/arena/internal/frontend/telnet"
	"github.com/cory-johannsen/arena/internal/game/duel"
	"github.com/cory-johannsen/arena/internal/protocol"
)

// RenderEvent formats one outbound envelope as colored Telnet lines for the
// player self.
//
// Postcondition: Returns at least one line for every event.
func RenderEvent(env protocol.Envelope, self string) []string {
	switch env.Event {
	case protocol.EventWelcome:
		var w protocol.Welcome
		_ = json.Unmarshal(env.Data, &w)
		return []string{
			telnet.Colorize(telnet.BrightYellow, "Welcome to the arena."),
			telnet.Colorf(telnet.Dim, "You are %s. Type help for commands.", w.PlayerID),
		}

	case protocol.EventPlayers:
		var n int
		_ = json.Unmarshal(env.Data, &n)
		return renderDuelPlayers(n)

	case protocol.EventRoomFull:
		return []string{telnet.Colorize(telnet.Red, "That duel room is full.")}

	case protocol.EventResult:
		var r protocol.Result
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return renderRaw(env)
		}
		return []string{RenderResult(r)}

	case protocol.EventBoardPlayers:
		var seats []string
		_ = json.Unmarshal(env.Data, &seats)
		return []string{renderBoardPlayers(seats, self)}

	case protocol.EventBoardRoomFull:
		return []string{telnet.Colorize(telnet.Red, "That board already has two players.")}

	case protocol.EventBoardInit:
		var b protocol.BoardInit
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return renderRaw(env)
		}
		return renderInit(b)

	case protocol.EventBoardUpdate:
		var u protocol.BoardUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return renderRaw(env)
		}
		return renderUpdate(u)

	case protocol.EventRematchOffer:
		return []string{telnet.Colorize(telnet.BrightBlue, "Your opponent wants a rematch. Type rematch to accept.")}

	case protocol.EventError:
		var e protocol.Error
		_ = json.Unmarshal(env.Data, &e)
		return []string{telnet.Colorf(telnet.BrightRed, "Error: %s", e.Message)}

	default:
		return renderRaw(env)
	}
}

func renderRaw(env protocol.Envelope) []string {
	if len(env.Data) == 0 {
		return []string{telnet.Colorf(telnet.Dim, "[%s]", env.Event)}
	}
	return []string{telnet.Colorf(telnet.Dim, "[%s] %s", env.Event, env.Data)}
}

func renderDuelPlayers(n int) []string {
	lines := []string{telnet.Colorf(telnet.Cyan, "Duel room: %d/2 players seated.", n)}
	if n >= 2 {
		lines = append(lines, telnet.Colorize(telnet.BrightCyan, "Both seats filled. Choose rock, paper, or scissors."))
	}
	return lines
}

// RenderResult formats one resolved duel round.
func RenderResult(r protocol.Result) string {
	style, verdict := telnet.Yellow, "Draw."
	switch duel.Outcome(r.Outcome) {
	case duel.Win:
		style, verdict = telnet.BrightGreen, "You win!"
	case duel.Lose:
		style, verdict = telnet.BrightRed, "You lose."
	}
	return telnet.Colorf(style, "Round %d: you threw %s, your opponent threw %s. %s",
		r.Round, r.YourChoice, r.OpponentChoice, verdict)
}

func renderBoardPlayers(seats []string, self string) string {
	if len(seats) == 0 {
		return telnet.Colorize(telnet.Cyan, "Board room: empty.")
	}
	names := make([]string, len(seats))
	for i, s := range seats {
		names[i] = s
		if s == self {
			names[i] += " (you)"
		}
	}
	return telnet.Colorf(telnet.Cyan, "Board room: %s", strings.Join(names, ", "))
}

func renderInit(b protocol.BoardInit) []string {
	var head string
	if b.Symbol != nil {
		head = telnet.Colorf(telnet.BrightYellow, "You play %s.", *b.Symbol)
	} else {
		head = telnet.Colorize(telnet.BrightYellow, "The board has been reset.")
	}
	lines := append([]string{head}, RenderGrid(b.Board, nil)...)
	return append(lines, turnLine(b.XIsNext, b.GameActive))
}

func renderUpdate(u protocol.BoardUpdate) []string {
	lines := RenderGrid(u.Board, u.Line)
	switch {
	case u.Winner != nil:
		lines = append(lines, telnet.Colorf(telnet.BrightGreen, "%s wins! Type rematch to play again.", *u.Winner))
	case u.IsDraw:
		lines = append(lines, telnet.Colorize(telnet.Yellow, "Draw. Type rematch to play again."))
	default:
		lines = append(lines, turnLine(u.XIsNext, u.GameActive))
	}
	return lines
}

func turnLine(xIsNext, active bool) string {
	if !active {
		return telnet.Colorize(telnet.Dim, "Game over.")
	}
	next := "O"
	if xIsNext {
		next = "X"
	}
	return telnet.Colorf(telnet.Cyan, "%s to move.", next)
}

// RenderGrid draws a 3x3 board. Empty cells show their 1-based number, and
// cells in highlight are emphasized.
func RenderGrid(cells []*string, highlight []int) []string {
	const sep = "---+---+---"
	var lines []string
	for row := 0; row < 3; row++ {
		parts := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			parts[col] = renderCell(cells, i, slices.Contains(highlight, i))
		}
		if row > 0 {
			lines = append(lines, sep)
		}
		lines = append(lines, " "+strings.Join(parts, " | "))
	}
	return lines
}

func renderCell(cells []*string, i int, hot bool) string {
	if i >= len(cells) || cells[i] == nil {
		return telnet.Colorf(telnet.Dim, "%d", i+1)
	}
	if hot {
		return telnet.Colorize(telnet.Bold+telnet.BrightGreen, *cells[i])
	}
	return *cells[i]
}
