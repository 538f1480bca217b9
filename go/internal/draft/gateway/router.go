package gateway

import (
	"encoding/json"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/room"
)

// Transport is what the router needs from the connection manager: room and
// connection scoped delivery, plus room subscription on join.
type Transport interface {
	ToRoom(roomCode string, kind events.Type, payload any)
	ToConnection(connID string, kind events.Type, payload any)
	Subscribe(connID, roomCode string)
}

// Router resolves inbound connection events into room mutations through the
// turn engine and pushes the resulting events back out. Malformed messages
// and stray actions from unseated connections are dropped silently; domain
// rejections go back to the sender only.
type Router struct {
	registry *room.Registry
	index    *room.Index
	engine   *engine.Engine
	tp       Transport
	clock    clockwork.Clock

	// startCountdown launches the room's countdown loop; injected so the
	// router stays free of scheduler lifetime concerns.
	startCountdown func(roomCode string)
}

// NewRouter creates an inbound action router.
func NewRouter(registry *room.Registry, index *room.Index, eng *engine.Engine, tp Transport, clock clockwork.Clock, startCountdown func(roomCode string)) *Router {
	return &Router{
		registry:       registry,
		index:          index,
		engine:         eng,
		tp:             tp,
		clock:          clock,
		startCountdown: startCountdown,
	}
}

// HandleMessage routes one inbound client message.
func (rt *Router) HandleMessage(connID string, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Str("connection_id", connID).Msg("dropping malformed message")
		return
	}

	switch msg.Type {
	case ActionCreateRoom:
		rt.handleCreateRoom(connID, msg.Data)
	case ActionJoinRoom:
		rt.handleJoinRoom(connID, msg.Data)
	case ActionStartGame:
		rt.handleStartGame(connID, msg.Data)
	case ActionSelectPlayer:
		rt.handleSelectPlayer(connID, msg.Data)
	case ActionSkipTurn:
		rt.handleSkipTurn(connID, msg.Data)
	case ActionPlayerReady:
		rt.handlePlayerReady(connID, msg.Data)
	default:
		log.Debug().
			Str("connection_id", connID).
			Str("action", msg.Type).
			Msg("dropping unrecognized action")
	}
}

func (rt *Router) handleCreateRoom(connID string, data json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PlayerName == "" {
		return
	}
	if _, seated := rt.index.Lookup(connID); seated {
		log.Debug().Str("connection_id", connID).Msg("dropping createRoom from seated connection")
		return
	}

	r, err := rt.registry.CreateRoom(connID, req.PlayerName)
	if err != nil {
		log.Error().Err(err).Msg("room creation failed")
		return
	}

	rt.index.Bind(connID, 1, r.Code, req.PlayerName)
	rt.tp.Subscribe(connID, r.Code)

	r.Lock()
	snap := r.Snapshot()
	r.Unlock()

	rt.tp.ToConnection(connID, events.TypeGameCreated, events.GameCreatedPayload{
		RoomCode: r.Code,
		Seat:     1,
		State:    snap,
	})
}

func (rt *Router) handleJoinRoom(connID string, data json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PlayerName == "" {
		return
	}
	if _, seated := rt.index.Lookup(connID); seated {
		log.Debug().Str("connection_id", connID).Msg("dropping joinRoom from seated connection")
		return
	}

	r, seat, err := rt.registry.JoinRoom(req.RoomCode, connID, req.PlayerName)
	if err != nil {
		rt.reject(connID, err)
		return
	}

	rt.index.Bind(connID, seat, r.Code, req.PlayerName)
	rt.tp.Subscribe(connID, r.Code)

	r.Lock()
	snap := r.Snapshot()
	r.Unlock()

	rt.tp.ToConnection(connID, events.TypeGameJoined, events.GameJoinedPayload{
		RoomCode: r.Code,
		Seat:     seat,
		State:    snap,
	})
	rt.tp.ToRoom(r.Code, events.TypePlayerJoined, events.PlayerJoinedPayload{
		Seat:       seat,
		PlayerName: req.PlayerName,
	})
}

func (rt *Router) handleStartGame(connID string, data json.RawMessage) {
	var req StartGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	r, ok := rt.registry.GetRoom(req.RoomCode)
	if !ok {
		// Start on an absent room is a silent no-op.
		log.Debug().Str("connection_id", connID).Str("room_code", req.RoomCode).Msg("startGame for unknown room")
		return
	}

	rt.engine.StartGame(r)
	rt.startCountdown(r.Code)
}

func (rt *Router) handleSelectPlayer(connID string, data json.RawMessage) {
	var req SelectPlayerRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PositionID == "" {
		return
	}

	rec, ok := rt.index.Lookup(connID)
	if !ok {
		return
	}
	if req.RoomCode != "" && req.RoomCode != rec.RoomCode {
		log.Debug().Str("connection_id", connID).Str("room_code", req.RoomCode).Msg("dropping selectPlayer for foreign room")
		return
	}
	r, ok := rt.registry.GetRoom(rec.RoomCode)
	if !ok {
		return
	}

	if err := rt.engine.Select(r, rec.Seat, req.PositionID, req.PlayerData); err != nil {
		rt.reject(connID, err)
	}
}

func (rt *Router) handleSkipTurn(connID string, data json.RawMessage) {
	var req SkipTurnRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
	}

	rec, ok := rt.index.Lookup(connID)
	if !ok {
		return
	}
	if req.RoomCode != "" && req.RoomCode != rec.RoomCode {
		log.Debug().Str("connection_id", connID).Str("room_code", req.RoomCode).Msg("dropping skipTurn for foreign room")
		return
	}
	r, ok := rt.registry.GetRoom(rec.RoomCode)
	if !ok {
		return
	}

	if err := rt.engine.Skip(r, rec.Seat); err != nil {
		rt.reject(connID, err)
	}
}

func (rt *Router) handlePlayerReady(connID string, data json.RawMessage) {
	var req PlayerReadyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	rec, ok := rt.index.Lookup(connID)
	if !ok {
		return
	}
	r, ok := rt.registry.GetRoom(rec.RoomCode)
	if !ok {
		return
	}

	r.Lock()
	occ := r.Seats[rec.Seat]
	if occ == nil || occ.ConnID != connID {
		r.Unlock()
		return
	}
	occ.Ready = req.Ready
	r.Unlock()

	rt.tp.ToRoom(rec.RoomCode, events.TypePlayerReady, events.PlayerReadyPayload{
		Seat:  rec.Seat,
		Ready: req.Ready,
	})
}

// HandleDisconnect nulls the participant's seat and announces the departure.
// The current turn is untouched; a vacated seat still receives its turn slot
// and times out. The room itself stays alive for the reaper to collect.
func (rt *Router) HandleDisconnect(connID string) {
	rec, ok := rt.index.Unbind(connID)
	if !ok {
		return
	}

	r, ok := rt.registry.GetRoom(rec.RoomCode)
	if !ok {
		return
	}

	r.Lock()
	vacated := false
	if occ := r.Seats[rec.Seat]; occ != nil && occ.ConnID == connID {
		delete(r.Seats, rec.Seat)
		vacated = true
	}
	// Departure counts as activity so the idle TTL runs from vacancy.
	r.Touch(rt.clock.Now())
	r.Unlock()

	if !vacated {
		return
	}

	log.Info().
		Str("room_code", rec.RoomCode).
		Int("seat", rec.Seat).
		Str("player_name", rec.Name).
		Msg("player disconnected")

	rt.tp.ToRoom(rec.RoomCode, events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{
		Seat:       rec.Seat,
		PlayerName: rec.Name,
	})
}

// reject reports a domain error to the originating connection only.
func (rt *Router) reject(connID string, err error) {
	rt.tp.ToConnection(connID, events.TypeError, events.ErrorPayload{Message: room.Reason(err)})
}
