package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// Event is the envelope for every outbound message.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"roomCode,omitempty"`
	Type      events.Type     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ClientMessage is the envelope for every inbound message.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound action types.
const (
	ActionCreateRoom   = "createRoom"
	ActionJoinRoom     = "joinRoom"
	ActionStartGame    = "startGame"
	ActionSelectPlayer = "selectPlayer"
	ActionSkipTurn     = "skipTurn"
	ActionPlayerReady  = "playerReady"
)

// Inbound action payloads.

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type StartGameRequest struct {
	RoomCode string `json:"roomCode"`
}

type SelectPlayerRequest struct {
	RoomCode   string          `json:"roomCode"`
	PositionID string          `json:"positionId"`
	PlayerData json.RawMessage `json:"playerData"`
}

type SkipTurnRequest struct {
	RoomCode string `json:"roomCode"`
}

type PlayerReadyRequest struct {
	Ready bool `json:"ready"`
}
