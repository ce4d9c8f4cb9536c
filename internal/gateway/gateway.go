// Package gateway is the single entry point every transport feeds: it issues
// identities, decodes inbound envelopes, runs the matching game engine under
// the room's lock, and fans results out to the seated sessions.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/protocol"
)

// ErrUnknownEvent is returned by Dispatch for an event name no handler serves.
var ErrUnknownEvent = errors.New("unknown event")

// ErrRateLimited is returned by Handle when a session exceeds its inbound rate.
var ErrRateLimited = errors.New("rate limited")

// ErrUnknownSession is returned when a PlayerID has no live session.
var ErrUnknownSession = errors.New("unknown session")

// Recorder accepts finished matches for asynchronous persistence.
type Recorder interface {
	Record(m history.Match) error
}

// handlerFunc serves one inbound event for the sending player.
type handlerFunc func(g *Gateway, id room.PlayerID, env protocol.Envelope) error

// handlers is the single source of truth for inbound dispatch.
var handlers = map[string]handlerFunc{
	protocol.EventJoinRoom:  (*Gateway).duelJoin,
	protocol.EventChoice:    (*Gateway).duelChoice,
	protocol.EventLeaveRoom: (*Gateway).duelLeave,

	protocol.EventBoardJoinRoom:   (*Gateway).boardJoin,
	protocol.EventBoardMove:       (*Gateway).boardMove,
	protocol.EventRematchRequest:  (*Gateway).boardRematch,
	protocol.EventBoardLeaveRoom:  (*Gateway).boardLeave,
	protocol.EventBoardAdminReset: (*Gateway).boardReset,
}

// Events returns the inbound event names the gateway serves.
func Events() []string {
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	return out
}

// Gateway routes inbound messages to the room registry and engines.
// It never mutates game state itself.
type Gateway struct {
	rooms    *room.Registry
	sessions *session.Manager
	recorder Recorder
	logger   *zap.Logger
}

// New creates a Gateway.
//
// Precondition: rooms, sessions, and logger must be non-nil. recorder may be nil.
func New(rooms *room.Registry, sessions *session.Manager, recorder Recorder, logger *zap.Logger) *Gateway {
	return &Gateway{
		rooms:    rooms,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// Connect opens a session for a new transport connection and sends it a
// welcome carrying its PlayerID.
//
// Postcondition: Returns an open session. The caller must call Disconnect
// with its ID once the transport closes.
func (g *Gateway) Connect(remoteAddr, transport string) *session.Session {
	sess := g.sessions.Open(remoteAddr, transport)
	g.send(sess.ID, protocol.EventWelcome, protocol.Welcome{PlayerID: string(sess.ID)})
	g.logger.Info("session opened",
		observability.Player(sess.ID),
		zap.String("remote_addr", remoteAddr),
		zap.String("transport", transport),
	)
	return sess
}

// Handle processes one raw inbound frame from id. Frames over the session's
// rate are dropped. Malformed frames are answered with an error event sent
// to id only. Rejected game actions are logged and otherwise ignored.
//
// Postcondition: Returns the error that caused the frame to be dropped or
// rejected, or nil when it was applied.
func (g *Gateway) Handle(id room.PlayerID, raw []byte) error {
	sess, ok := g.sessions.Get(id)
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownSession)
	}
	if !sess.Allow() {
		g.logger.Debug("dropping message over rate", observability.Player(id))
		return ErrRateLimited
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		g.sendError(id, "", err)
		return err
	}
	return g.Dispatch(id, env)
}

// Dispatch runs the handler for env.Event on behalf of id.
//
// Postcondition: Returns ErrUnknownEvent for unserved events and
// protocol.ErrMalformed for undecodable payloads; both are also reported to
// id as an error event. Game-rule rejections are returned but not reported.
func (g *Gateway) Dispatch(id room.PlayerID, env protocol.Envelope) error {
	start := time.Now()
	h, ok := handlers[env.Event]
	if !ok {
		err := fmt.Errorf("%q: %w", env.Event, ErrUnknownEvent)
		g.sendError(id, env.Event, err)
		return err
	}

	err := h(g, id, env)
	switch {
	case err == nil:
		g.logger.Debug("event applied",
			observability.Player(id),
			zap.String("event", env.Event),
			zap.Duration("elapsed", time.Since(start)),
		)
	case errors.Is(err, protocol.ErrMalformed):
		g.sendError(id, env.Event, err)
	default:
		g.logger.Debug("event rejected",
			observability.Player(id),
			zap.String("event", env.Event),
			zap.Error(err),
		)
	}
	return err
}

// Disconnect leaves every room id occupies, of both kinds, notifying the
// remaining seats, and drops the session.
//
// Postcondition: id holds no seat anywhere and its outbox is closed.
func (g *Gateway) Disconnect(id room.PlayerID) {
	held, err := g.sessions.Close(id)
	if err != nil {
		g.logger.Debug("disconnect of closed session", observability.Player(id))
		return
	}
	for _, m := range held {
		var err error
		switch m.Kind {
		case room.KindDuel:
			err = g.leaveDuel(id, m.Code)
		case room.KindBoard:
			err = g.leaveBoard(id, m.Code)
		}
		if err != nil {
			g.logger.Debug("disconnect leave", append(observability.Room(m.Kind, m.Code), zap.Error(err))...)
		}
	}
	g.logger.Info("session closed", observability.Player(id), zap.Int("rooms_left", len(held)))
}

// send encodes and delivers one event to a single player. Delivery is best
// effort: a full or closed outbox drops the message.
func (g *Gateway) send(to room.PlayerID, event string, data any) {
	raw, err := protocol.Encode(event, data)
	if err != nil {
		g.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}
	g.deliver(to, event, raw)
}

func (g *Gateway) deliver(to room.PlayerID, event string, raw []byte) {
	sess, ok := g.sessions.Get(to)
	if !ok {
		return
	}
	if err := sess.Outbox.Push(raw); err != nil {
		g.logger.Warn("dropping outbound event",
			observability.Player(to),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// broadcast delivers one event to every player in seats.
func (g *Gateway) broadcast(seats []room.PlayerID, event string, data any) {
	raw, err := protocol.Encode(event, data)
	if err != nil {
		g.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}
	for _, id := range seats {
		g.deliver(id, event, raw)
	}
}

func (g *Gateway) sendError(to room.PlayerID, event string, err error) {
	g.send(to, protocol.EventError, protocol.Error{Event: event, Message: err.Error()})
}

func (g *Gateway) record(m history.Match) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Record(m); err != nil {
		g.logger.Debug("match not recorded", append(observability.Room(m.Kind, m.Code), zap.Error(err))...)
	}
}

// join seats id in (kind, code) and records the membership. onJoin runs under
// the room lock. A full room is answered with fullEvent to id only.
func (g *Gateway) join(kind room.Kind, code string, id room.PlayerID, fullEvent string, onJoin func(*room.Room, room.JoinResult)) error {
	_, err := g.rooms.Join(kind, code, id, func(r *room.Room, res room.JoinResult) {
		if err := g.sessions.Join(id, kind, code); err != nil {
			g.logger.Warn("tracking membership", observability.Player(id), zap.Error(err))
		}
		onJoin(r, res)
	})
	if errors.Is(err, room.ErrCapacityExceeded) {
		g.send(id, fullEvent, nil)
		g.logger.Info("room full", append(observability.Room(kind, code), observability.Player(id))...)
		return err
	}
	if err != nil {
		return err
	}
	g.logger.Info("joined room", append(observability.Room(kind, code), observability.Player(id))...)
	return nil
}

// leave removes id from (kind, code) and forgets the membership. onLeave runs
// under the room lock with the remaining seats.
func (g *Gateway) leave(kind room.Kind, code string, id room.PlayerID, onLeave func(room.LeaveResult)) error {
	g.sessions.Leave(id, kind, code)
	res, err := g.rooms.Leave(kind, code, id, func(_ *room.Room, res room.LeaveResult) {
		onLeave(res)
	})
	if err != nil {
		return err
	}
	fields := append(observability.Room(kind, code), observability.Player(id))
	if res.Removed {
		g.logger.Info("room removed", fields...)
	} else {
		g.logger.Info("left room", fields...)
	}
	return nil
}
