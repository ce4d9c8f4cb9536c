package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/board"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/protocol"
)

func (g *Gateway) boardJoin(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.join(room.KindBoard, code, id, protocol.EventBoardRoomFull, func(r *room.Room, res room.JoinResult) {
		g.broadcast(res.Seats, protocol.EventBoardPlayers, seatList(res.Seats))
		snap, sym, err := board.Init(r, id)
		if err != nil {
			g.logger.Error("board init after join", observability.Player(id), zap.Error(err))
			return
		}
		g.send(id, protocol.EventBoardInit, initPayload(snap, sym))
	})
}

func (g *Gateway) boardMove(id room.PlayerID, env protocol.Envelope) error {
	code, idx, err := protocol.DecodeMove(env.Data)
	if err != nil {
		return err
	}
	return g.rooms.Do(room.KindBoard, code, func(r *room.Room) error {
		upd, err := board.Move(r, id, idx)
		if err != nil {
			return err
		}
		seats := r.Seats()
		g.broadcast(seats, protocol.EventBoardUpdate, updatePayload(upd))
		if !upd.Active {
			g.finishBoard(code, seats, upd)
		}
		return nil
	})
}

func (g *Gateway) finishBoard(code string, seats []room.PlayerID, upd board.Update) {
	m := history.Match{Kind: room.KindBoard, Code: code, Players: seats, Detail: "draw"}
	if upd.Winner != board.Empty {
		for i, p := range seats {
			if board.SymbolForSeat(i) == upd.Winner {
				m.Winner = p
			}
		}
		line := make([]string, len(upd.Line))
		for i, n := range upd.Line {
			line[i] = strconv.Itoa(n)
		}
		m.Detail = fmt.Sprintf("%s %s", upd.Winner, strings.Join(line, ","))
	}
	g.logger.Info("board game finished",
		append(observability.Room(room.KindBoard, code),
			zap.String("winner", string(upd.Winner)),
			zap.Bool("draw", upd.IsDraw),
		)...)
	g.record(m)
}

// boardRematch registers the sender's consent. The first consent is offered
// to the other seat only; the second resets the board for both.
func (g *Gateway) boardRematch(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.rooms.Do(room.KindBoard, code, func(r *room.Room) error {
		out, err := board.RequestRematch(r, id)
		if err != nil {
			return err
		}
		if out.Reset {
			g.broadcast(r.Seats(), protocol.EventBoardInit, initPayload(out.Snapshot, board.Empty))
			g.logger.Info("rematch agreed", observability.Room(room.KindBoard, code)...)
			return nil
		}
		if out.OfferTo != "" {
			g.send(out.OfferTo, protocol.EventRematchOffer, nil)
		}
		return nil
	})
}

func (g *Gateway) boardLeave(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.leaveBoard(id, code)
}

func (g *Gateway) leaveBoard(id room.PlayerID, code string) error {
	return g.leave(room.KindBoard, code, id, func(res room.LeaveResult) {
		g.broadcast(append(res.Seats, id), protocol.EventBoardPlayers, seatList(res.Seats))
	})
}

// boardReset clears the board without seat consent. Any connection may
// reset any existing room.
func (g *Gateway) boardReset(id room.PlayerID, env protocol.Envelope) error {
	code, err := protocol.DecodeRoomCode(env.Data)
	if err != nil {
		return err
	}
	return g.rooms.Do(room.KindBoard, code, func(r *room.Room) error {
		snap, err := board.Reset(r)
		if err != nil {
			return err
		}
		g.broadcast(r.Seats(), protocol.EventBoardInit, initPayload(snap, board.Empty))
		g.logger.Info("board reset", append(observability.Room(room.KindBoard, code), observability.Player(id))...)
		return nil
	})
}

func seatList(seats []room.PlayerID) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = string(s)
	}
	return out
}

func markPtr(m board.Mark) *string {
	if m == board.Empty {
		return nil
	}
	s := string(m)
	return &s
}

func cellsPayload(c board.Cells) []*string {
	out := make([]*string, len(c))
	for i, m := range c {
		out[i] = markPtr(m)
	}
	return out
}

// initPayload builds ttt-init. An Empty symbol is sent as null.
func initPayload(s board.Snapshot, symbol board.Mark) protocol.BoardInit {
	return protocol.BoardInit{
		Board:      cellsPayload(s.Cells),
		XIsNext:    s.XIsNext,
		Symbol:     markPtr(symbol),
		GameActive: s.Active,
	}
}

func updatePayload(u board.Update) protocol.BoardUpdate {
	return protocol.BoardUpdate{
		Board:      cellsPayload(u.Cells),
		XIsNext:    u.XIsNext,
		Winner:     markPtr(u.Winner),
		Line:       u.Line,
		IsDraw:     u.IsDraw,
		GameActive: u.Active,
	}
}
