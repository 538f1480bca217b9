package events

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/draftroom/go/internal/room"
)

// Type identifies an outbound event kind on the wire.
type Type string

const (
	TypeGameCreated        Type = "gameCreated"
	TypeGameJoined         Type = "gameJoined"
	TypePlayerJoined       Type = "playerJoined"
	TypePlayerReady        Type = "playerReady"
	TypeGameStarted        Type = "gameStarted"
	TypePlayerSelected     Type = "playerSelected"
	TypeTurnSkipped        Type = "turnSkipped"
	TypeTurnChanged        Type = "turnChanged"
	TypeTimerUpdate        Type = "timerUpdate"
	TypePlayerDisconnected Type = "playerDisconnected"
	TypeError              Type = "error"
)

// GameCreatedPayload acknowledges room creation to the creator.
type GameCreatedPayload struct {
	RoomCode string        `json:"roomCode"`
	Seat     int           `json:"seat"`
	State    room.Snapshot `json:"state"`
}

// GameJoinedPayload acknowledges a join to the joiner.
type GameJoinedPayload struct {
	RoomCode string        `json:"roomCode"`
	Seat     int           `json:"seat"`
	State    room.Snapshot `json:"state"`
}

// PlayerJoinedPayload announces a new occupant to the whole room.
type PlayerJoinedPayload struct {
	Seat       int    `json:"seat"`
	PlayerName string `json:"playerName"`
}

// PlayerReadyPayload announces a ready-flag change to the whole room.
type PlayerReadyPayload struct {
	Seat  int  `json:"seat"`
	Ready bool `json:"ready"`
}

// GameStartedPayload announces the start of the draft.
type GameStartedPayload struct {
	CurrentTurn     int       `json:"currentTurn"`
	TurnDeadline    time.Time `json:"turnDeadline"`
	TurnDurationSec int       `json:"turnDurationSec"`
}

// PlayerSelectedPayload announces a roster selection. Rosters carries the
// full per-seat roster mapping so clients never diverge from server state.
type PlayerSelectedPayload struct {
	Seat       int                                `json:"seat"`
	PositionID string                             `json:"positionId"`
	PlayerData json.RawMessage                    `json:"playerData"`
	Rosters    map[int]map[string]json.RawMessage `json:"rosters"`
}

// TurnSkippedPayload announces a voluntary skip.
type TurnSkippedPayload struct {
	Seat int `json:"seat"`
}

// TurnChangedPayload announces the new turn and its deadline.
type TurnChangedPayload struct {
	CurrentTurn  int       `json:"currentTurn"`
	TurnDeadline time.Time `json:"turnDeadline"`
}

// TimerUpdatePayload is broadcast on every scheduler tick.
type TimerUpdatePayload struct {
	RemainingMs int64 `json:"remainingMs"`
	CurrentTurn int   `json:"currentTurn"`
}

// PlayerDisconnectedPayload announces a vacated seat.
type PlayerDisconnectedPayload struct {
	Seat       int    `json:"seat"`
	PlayerName string `json:"playerName"`
}

// ErrorPayload carries the human-readable reason for a rejected action. Sent
// only to the originating connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
