package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/duel"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/protocol"
)

func (g *Gateway) duelJoin(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.join(room.KindDuel, code, id, protocol.EventRoomFull, func(_ *room.Room, res room.JoinResult) {
		g.broadcast(res.Seats, protocol.EventPlayers, len(res.Seats))
	})
}

// duelChoice submits a move to the room named in the payload, or to the
// duel room the sender joined most recently.
func (g *Gateway) duelChoice(id room.PlayerID, env protocol.Envelope) error {
	c, err := protocol.DecodeChoice(env.Data)
	if err != nil {
		return err
	}
	move, err := duel.ParseMove(c.Choice)
	if err != nil {
		return err
	}
	code := c.RoomCode
	if code == "" {
		cur, ok := g.sessions.Current(id, room.KindDuel)
		if !ok {
			return fmt.Errorf("choice outside a duel room: %w", room.ErrNotSeated)
		}
		code = cur
	}

	return g.rooms.Do(room.KindDuel, code, func(r *room.Room) error {
		res, err := duel.Submit(r, id, move, c.Round)
		if err != nil || res == nil {
			return err
		}
		for _, seat := range res.Results {
			g.send(seat.Player, protocol.EventResult, protocol.Result{
				YourChoice:     string(seat.Yours),
				OpponentChoice: string(seat.Opponent),
				Outcome:        string(seat.Outcome),
				Round:          res.Round,
			})
		}
		winner, _ := res.Winner()
		g.logger.Info("duel round resolved",
			append(observability.Room(room.KindDuel, code),
				zap.Uint64("round", res.Round),
				zap.String("winner", string(winner)),
			)...)
		g.record(history.Match{
			Kind:    room.KindDuel,
			Code:    code,
			Round:   res.Round,
			Players: []room.PlayerID{res.Results[0].Player, res.Results[1].Player},
			Winner:  winner,
			Detail:  fmt.Sprintf("%s/%s", res.Results[0].Yours, res.Results[1].Yours),
		})
		return nil
	})
}

func (g *Gateway) duelLeave(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.leaveDuel(id, code)
}

// leaveDuel vacates id's seat and tells the remaining seat, and the leaver
// while still connected, the new occupancy.
func (g *Gateway) leaveDuel(id room.PlayerID, code string) error {
	return g.leave(room.KindDuel, code, id, func(res room.LeaveResult) {
		g.broadcast(append(res.Seats, id), protocol.EventPlayers, len(res.Seats))
	})
}
