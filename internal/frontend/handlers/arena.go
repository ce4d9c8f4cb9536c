// Package handlers runs the text command loop for Telnet clients, turning
// typed commands into gateway envelopes and rendering outbound events.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/frontend/telnet"
	"github.com/cory-johannsen/arena/internal/game/board"
	"github.com/cory-johannsen/arena/internal/game/command"
	"github.com/cory-johannsen/arena/internal/game/duel"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/gateway"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/protocol"
)

// Transport is the session transport name reported for Telnet clients.
const Transport = "telnet"

const prompt = telnet.BrightCyan + "arena> " + telnet.Reset

// Gateway is the subset of the gateway a text session drives.
type Gateway interface {
	Connect(remoteAddr, transport string) *session.Session
	Handle(id room.PlayerID, raw []byte) error
	Disconnect(id room.PlayerID)
}

// ArenaHandler serves one Telnet client per HandleSession call.
// It implements telnet.SessionHandler.
type ArenaHandler struct {
	gw       Gateway
	commands *command.Registry
	logger   *zap.Logger
}

// NewArenaHandler creates an ArenaHandler.
//
// Precondition: gw, commands, and logger must be non-nil.
func NewArenaHandler(gw Gateway, commands *command.Registry, logger *zap.Logger) *ArenaHandler {
	return &ArenaHandler{gw: gw, commands: commands, logger: logger}
}

// HandleSession connects the client to the gateway, forwards its outbound
// events to conn, and runs the command loop until the client quits or the
// connection fails.
//
// Postcondition: The client holds no seat and its gateway session is closed.
func (h *ArenaHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	sess := h.gw.Connect(remoteAddr(conn), Transport)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.forward(conn, sess)
	}()

	err := h.commandLoop(ctx, conn, sess.ID)

	// Disconnect closes the outbox, which ends the forwarder.
	h.gw.Disconnect(sess.ID)
	wg.Wait()

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func remoteAddr(conn *telnet.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// forward renders every outbound envelope for id until the outbox closes.
func (h *ArenaHandler) forward(conn *telnet.Conn, sess *session.Session) {
	for raw := range sess.Outbox.Messages() {
		env, err := protocol.Decode(raw)
		if err != nil {
			h.logger.Error("decoding outbound event", observability.Player(sess.ID), zap.Error(err))
			continue
		}
		lines := append([]string{""}, RenderEvent(env, string(sess.ID))...)
		if err := conn.WriteLines(lines...); err != nil {
			h.logger.Debug("writing to telnet client", observability.Player(sess.ID), zap.Error(err))
			continue
		}
		_ = conn.WritePrompt(prompt)
	}
}

// occupied is the client's view of the rooms it occupies, one per kind.
type occupied map[room.Kind]string

// commandLoop reads lines, resolves them against the command registry, and
// submits the matching envelope to the gateway.
//
// Postcondition: Returns nil on quit, ctx.Err() on cancellation, or the read error.
func (h *ArenaHandler) commandLoop(ctx context.Context, conn *telnet.Conn, id room.PlayerID) error {
	current := occupied{}
	if err := conn.WritePrompt(prompt); err != nil {
		return fmt.Errorf("writing prompt: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		parsed := command.Parse(line)
		if parsed.Command == "" {
			_ = conn.WritePrompt(prompt)
			continue
		}
		cmd, ok := h.commands.Resolve(parsed.Command)
		if !ok {
			h.reply(conn, telnet.Colorf(telnet.Red, "Unknown command %q. Type help for a list.", parsed.Command))
			continue
		}
		if len(parsed.Args) < cmd.MinArgs {
			h.reply(conn, telnet.Colorf(telnet.Red, "Usage: %s", cmd.Usage))
			continue
		}

		switch cmd.Handler {
		case command.HandlerQuit:
			_ = conn.WriteLines(telnet.Colorize(telnet.Cyan, "Goodbye."))
			return nil
		case command.HandlerHelp:
			h.reply(conn, h.commands.HelpLines()...)
			continue
		}

		req, msg := buildRequest(cmd, parsed.Args, current)
		if msg != "" {
			h.reply(conn, telnet.Colorize(telnet.Red, msg))
			continue
		}
		if err := h.submit(id, req, current); err != nil {
			if msg := rejection(err); msg != "" {
				h.reply(conn, telnet.Colorize(telnet.Red, msg))
			}
			continue
		}
		if req.event == protocol.EventChoice {
			h.reply(conn, telnet.Colorize(telnet.Dim, "Choice locked in."))
		}
	}
}

// rejection returns the text shown for a gateway rejection, or "" when the
// gateway already answered through the outbox.
func rejection(err error) string {
	switch {
	case errors.Is(err, room.ErrCapacityExceeded), errors.Is(err, protocol.ErrMalformed):
		return ""
	case errors.Is(err, gateway.ErrRateLimited):
		return "Slow down."
	case errors.Is(err, board.ErrInvalidMove):
		return "That move is not allowed right now."
	case errors.Is(err, duel.ErrStaleRound):
		return "That round is already over."
	case errors.Is(err, room.ErrUnknownRoom):
		return "No such room."
	case errors.Is(err, room.ErrNotSeated):
		return "You do not have a seat in that room."
	default:
		return "Command failed."
	}
}

func (h *ArenaHandler) reply(conn *telnet.Conn, lines ...string) {
	_ = conn.WriteLines(lines...)
	_ = conn.WritePrompt(prompt)
}

// request is one envelope to submit, plus the room bookkeeping it implies.
type request struct {
	event string
	data  any
	// joins is set when a successful submit seats the client in (kind, code).
	joins bool
	// leaves is set when the submit gives up the client's room of kind.
	leaves bool
	kind   room.Kind
	code   string
}

// buildRequest maps a resolved command to a gateway request. It returns a
// non-empty message instead when the command cannot be sent as typed.
func buildRequest(cmd *command.Command, args []string, current occupied) (request, string) {
	switch cmd.Handler {
	case command.HandlerDuelJoin:
		return request{event: protocol.EventJoinRoom, data: args[0], joins: true, kind: room.KindDuel, code: args[0]}, ""

	case command.HandlerChoose:
		move, err := duel.ParseMove(args[0])
		if err != nil {
			return request{}, "Choose rock, paper, or scissors."
		}
		code, ok := current[room.KindDuel]
		if !ok {
			return request{}, "You are not in a duel room. Type duel <room> first."
		}
		return request{event: protocol.EventChoice, data: protocol.Choice{Choice: string(move), RoomCode: code}}, ""

	case command.HandlerBoardJoin:
		return request{event: protocol.EventBoardJoinRoom, data: args[0], joins: true, kind: room.KindBoard, code: args[0]}, ""

	case command.HandlerMark:
		code, ok := current[room.KindBoard]
		if !ok {
			return request{}, "You are not at a board. Type board <room> first."
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 9 {
			return request{}, "Pick a cell from 1 to 9."
		}
		idx := n - 1
		return request{event: protocol.EventBoardMove, data: protocol.Move{RoomCode: code, Index: &idx}}, ""

	case command.HandlerRematch:
		code, ok := current[room.KindBoard]
		if !ok {
			return request{}, "You are not at a board."
		}
		return request{event: protocol.EventRematchRequest, data: code}, ""

	case command.HandlerReset:
		code, ok := current[room.KindBoard]
		if len(args) > 0 {
			code, ok = args[0], true
		}
		if !ok {
			return request{}, "Usage: " + cmd.Usage
		}
		return request{event: protocol.EventBoardAdminReset, data: code}, ""

	case command.HandlerLeave:
		kind, event := room.KindDuel, protocol.EventLeaveRoom
		switch args[0] {
		case "duel", "rps":
		case "board", "ttt":
			kind, event = room.KindBoard, protocol.EventBoardLeaveRoom
		default:
			return request{}, "Usage: " + cmd.Usage
		}
		code, ok := current[kind]
		if !ok {
			return request{}, fmt.Sprintf("You are not in a %s room.", kind)
		}
		return request{event: event, data: code, leaves: true, kind: kind, code: code}, ""
	}
	return request{}, fmt.Sprintf("%s is not available here.", cmd.Name)
}

// submit encodes req and hands it to the gateway. Outcomes reach the client
// through its outbox; only the room bookkeeping happens here.
func (h *ArenaHandler) submit(id room.PlayerID, req request, current occupied) error {
	raw, err := protocol.Encode(req.event, req.data)
	if err != nil {
		h.logger.Error("encoding command", zap.String("event", req.event), zap.Error(err))
		return err
	}
	err = h.gw.Handle(id, raw)
	switch {
	case req.leaves:
		delete(current, req.kind)
	case req.joins && err == nil:
		if prev, ok := current[req.kind]; ok && prev != req.code {
			h.leavePrevious(id, req.kind, prev)
		}
		current[req.kind] = req.code
	}
	if err != nil {
		h.logger.Debug("command rejected", observability.Player(id), zap.String("event", req.event), zap.Error(err))
	}
	return err
}

// leavePrevious gives up the room of kind the client held before joining a
// new one, so a text client sits in at most one room per kind.
func (h *ArenaHandler) leavePrevious(id room.PlayerID, kind room.Kind, code string) {
	event := protocol.EventLeaveRoom
	if kind == room.KindBoard {
		event = protocol.EventBoardLeaveRoom
	}
	raw, err := protocol.Encode(event, code)
	if err != nil {
		h.logger.Error("encoding leave", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.gw.Handle(id, raw); err != nil {
		h.logger.Debug("leaving previous room", observability.Player(id), zap.String("kind", string(kind)), zap.String("room", code), zap.Error(err))
	}
}
