package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/storage/postgres"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <duel|board> <room>",
		Short: "Print the most recent recorded matches of a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := room.Kind(args[0])
			if kind != room.KindDuel && kind != room.KindBoard {
				return fmt.Errorf("unknown kind %q: must be duel or board", args[0])
			}
			if limit < 1 {
				return fmt.Errorf("invalid --limit %d: must be at least 1", limit)
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.Database, zap.NewNop())
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			matches, err := postgres.NewMatchRepository(pool.DB()).Recent(cmd.Context(), kind, args[1], limit)
			if err != nil {
				return err
			}
			return printMatches(cmd, matches)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of matches to print")
	return cmd
}

func printMatches(cmd *cobra.Command, matches []history.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matches recorded")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tROUND\tPLAYERS\tWINNER\tDETAIL")
	for _, m := range matches {
		winner := string(m.Winner)
		if m.Draw() {
			winner = "-"
		}
		players := make([]string, len(m.Players))
		for i, p := range m.Players {
			players[i] = string(p)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			m.FinishedAt.Format(time.RFC3339), m.Round, strings.Join(players, ","), winner, m.Detail)
	}
	return tw.Flush()
}
