// Package protocol defines the JSON wire format shared by every transport:
// an envelope naming an event, and the payload carried for each event.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Duel channel events.
const (
	EventJoinRoom  = "joinRoom"
	EventPlayers   = "players"
	EventRoomFull  = "roomFull"
	EventChoice    = "choice"
	EventResult    = "result"
	EventLeaveRoom = "leaveRoom"
)

// Board channel events.
const (
	EventBoardJoinRoom   = "ttt-joinRoom"
	EventBoardPlayers    = "ttt-players"
	EventBoardRoomFull   = "ttt-roomFull"
	EventBoardInit       = "ttt-init"
	EventBoardMove       = "ttt-move"
	EventBoardUpdate     = "ttt-update"
	EventRematchRequest  = "ttt-rematch-request"
	EventRematchOffer    = "ttt-rematch-offer"
	EventBoardLeaveRoom  = "ttt-leaveRoom"
	EventBoardAdminReset = "ttt-reset"
)

// Connection-level events.
const (
	EventWelcome = "welcome"
	EventError   = "error"
)

// ErrMalformed is returned for any envelope or payload that cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds the wire form of an event. A nil data omits the payload.
//
// Postcondition: Returns the JSON encoding or a marshalling error.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses one inbound frame.
//
// Postcondition: Returns an Envelope with a non-empty Event, or an error wrapping ErrMalformed.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	return env, nil
}

// Welcome is sent once per connection with the identity issued to it.
type Welcome struct {
	PlayerID string `json:"playerId"`
}

// Error tells the sender its message could not be understood.
type Error struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Result is one seat's view of a resolved duel round.
type Result struct {
	YourChoice     string `json:"yourChoice"`
	OpponentChoice string `json:"opponentChoice"`
	Outcome        string `json:"outcome"`
	Round          uint64 `json:"round"`
}

// BoardInit carries the board to a joiner, or to both seats after a reset.
// Symbol is nil on a shared reset.
type BoardInit struct {
	Board      []*string `json:"board"`
	XIsNext    bool      `json:"xIsNext"`
	Symbol     *string   `json:"symbol"`
	GameActive bool      `json:"gameActive"`
}

// BoardUpdate is broadcast after every legal move.
type BoardUpdate struct {
	Board      []*string `json:"board"`
	XIsNext    bool      `json:"xIsNext"`
	Winner     *string   `json:"winner"`
	Line       []int     `json:"line"`
	IsDraw     bool      `json:"isDraw"`
	GameActive bool      `json:"gameActive"`
}

// Choice is the object form of a duel submission. Round is optional; zero
// means the submission applies to whatever round is open.
type Choice struct {
	Choice   string `json:"choice"`
	Round    uint64 `json:"round,omitempty"`
	RoomCode string `json:"roomCode,omitempty"`
}

// Move is a board move request.
type Move struct {
	RoomCode string `json:"roomCode"`
	Index    *int   `json:"idx"`
}

// DecodeRoomCode reads a room code sent either as a bare JSON string or as
// {"roomCode": "..."}.
//
// Postcondition: Returns a non-empty code or an error wrapping ErrMalformed.
func DecodeRoomCode(data json.RawMessage) (string, error) {
	var code string
	if isString(data) {
		if err := json.Unmarshal(data, &code); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var obj struct {
			RoomCode string `json:"roomCode"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		code = obj.RoomCode
	}
	if code == "" {
		return "", fmt.Errorf("%w: empty room code", ErrMalformed)
	}
	return code, nil
}

// DecodeChoice reads a duel choice sent either as a bare string ("Rock") or
// as a Choice object.
//
// Postcondition: Returns a Choice with a non-empty Choice field or an error wrapping ErrMalformed.
func DecodeChoice(data json.RawMessage) (Choice, error) {
	var c Choice
	if isString(data) {
		if err := json.Unmarshal(data, &c.Choice); err != nil {
			return Choice{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else if err := json.Unmarshal(data, &c); err != nil {
		return Choice{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.Choice == "" {
		return Choice{}, fmt.Errorf("%w: empty choice", ErrMalformed)
	}
	return c, nil
}

// DecodeMove reads a board move.
//
// Postcondition: Returns a Move with a room code and index, or an error wrapping ErrMalformed.
func DecodeMove(data json.RawMessage) (string, int, error) {
	var m Move
	if err := json.Unmarshal(data, &m); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.RoomCode == "" || m.Index == nil {
		return "", 0, fmt.Errorf("%w: move needs roomCode and idx", ErrMalformed)
	}
	return m.RoomCode, *m.Index, nil
}

func isString(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '"'
}
