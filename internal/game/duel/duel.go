// Package duel implements the simultaneous-choice game: both seats pick one
// of three moves, and the pair is resolved as soon as both picks are in.
package duel

import (
	"errors"
	"fmt"
	"strings"
)

// Move is one of the three duel choices.
type Move string

// The duel move set.
const (
	Rock     Move = "Rock"
	Paper    Move = "Paper"
	Scissors Move = "Scissors"
)

// Outcome labels a resolved round from one seat's point of view.
type Outcome string

// Round outcomes.
const (
	Win  Outcome = "Win"
	Lose Outcome = "Lose"
	Draw Outcome = "Draw"
)

var (
	// ErrInvalidMove is returned for a value outside the move set.
	ErrInvalidMove = errors.New("invalid duel move")
	// ErrStaleRound is returned when a submission names a round other than the current one.
	ErrStaleRound = errors.New("stale duel round")
)

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// ParseMove converts s to a Move, ignoring case and surrounding space.
//
// Postcondition: Returns a valid Move or ErrInvalidMove.
func ParseMove(s string) (Move, error) {
	for m := range beats {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidMove)
}

// Valid reports whether m is in the move set.
func (m Move) Valid() bool {
	_, ok := beats[m]
	return ok
}

// Beats reports whether m defeats o.
func (m Move) Beats(o Move) bool {
	return beats[m] == o
}

// Resolve returns the outcome of mine against theirs for the owner of mine.
//
// Precondition: mine and theirs are valid moves.
func Resolve(mine, theirs Move) Outcome {
	switch {
	case mine == theirs:
		return Draw
	case mine.Beats(theirs):
		return Win
	default:
		return Lose
	}
}
