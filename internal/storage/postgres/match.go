package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/history"
)

// MatchRepository persists finished matches to the match_results table.
// It implements history.Store.
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a MatchRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// SaveMatch inserts one finished match.
//
// Postcondition: The match is stored with a NULL winner on a draw.
func (r *MatchRepository) SaveMatch(ctx context.Context, m history.Match) error {
	players := make([]string, len(m.Players))
	for i, p := range m.Players {
		players[i] = string(p)
	}
	var winner *string
	if !m.Draw() {
		w := string(m.Winner)
		winner = &w
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO match_results (kind, room_code, round, players, winner, detail, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(m.Kind), m.Code, int64(m.Round), players, winner, m.Detail, m.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting %s match for room %q: %w", m.Kind, m.Code, err)
	}
	return nil
}

// Recent returns up to limit matches played in the room (kind, code), newest first.
//
// Precondition: limit >= 1.
func (r *MatchRepository) Recent(ctx context.Context, kind room.Kind, code string, limit int) ([]history.Match, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kind, room_code, round, players, winner, detail, finished_at
		 FROM match_results
		 WHERE kind = $1 AND room_code = $2
		 ORDER BY finished_at DESC, id DESC
		 LIMIT $3`,
		string(kind), code, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying matches for room %q: %w", code, err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Match, error) {
		var (
			m       history.Match
			k       string
			round   int64
			players []string
			winner  *string
		)
		if err := row.Scan(&k, &m.Code, &round, &players, &winner, &m.Detail, &m.FinishedAt); err != nil {
			return history.Match{}, err
		}
		m.Kind = room.Kind(k)
		m.Round = uint64(round)
		for _, p := range players {
			m.Players = append(m.Players, room.PlayerID(p))
		}
		if winner != nil {
			m.Winner = room.PlayerID(*winner)
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning matches: %w", err)
	}
	return matches, nil
}
