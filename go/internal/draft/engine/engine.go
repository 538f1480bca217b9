package engine

import (
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/room"
)

// Broadcaster fans an event out to every connection subscribed to a room.
// Implementations must not block: the engine emits while holding the room
// lock so that event order matches mutation order.
type Broadcaster interface {
	ToRoom(roomCode string, kind events.Type, payload any)
}

// Engine applies turn and selection state transitions to rooms. It is the
// only code that advances turns or fills roster positions; every transition
// runs under the room's lock as a single validate-then-mutate unit.
type Engine struct {
	clock     clockwork.Clock
	broadcast Broadcaster
}

// NewEngine creates a turn engine.
func NewEngine(clock clockwork.Clock, broadcast Broadcaster) *Engine {
	return &Engine{clock: clock, broadcast: broadcast}
}

// StartGame activates the room's countdown: the turn returns to seat 1 and
// the first deadline is set. Duplicate-countdown protection lives in the
// scheduler, whose Start is a no-op for a room with a running loop.
func (e *Engine) StartGame(r *room.Room) {
	r.Lock()
	defer r.Unlock()

	now := e.clock.Now()
	r.CurrentTurn = 1
	r.TurnDeadline = now.Add(r.TurnDuration)
	r.Touch(now)

	log.Info().
		Str("room_code", r.Code).
		Time("turn_deadline", r.TurnDeadline).
		Msg("game started")

	e.broadcast.ToRoom(r.Code, events.TypeGameStarted, events.GameStartedPayload{
		CurrentTurn:     r.CurrentTurn,
		TurnDeadline:    r.TurnDeadline,
		TurnDurationSec: int(r.TurnDuration / time.Second),
	})
}

// Select fills a roster position for the acting seat and advances the turn.
// The selection broadcast is emitted before the turn-change broadcast.
func (e *Engine) Select(r *room.Room, seat int, positionID string, playerData json.RawMessage) error {
	r.Lock()
	defer r.Unlock()

	if seat != r.CurrentTurn {
		return room.ErrNotYourTurn
	}
	if _, filled := r.Rosters[seat][positionID]; filled {
		return room.ErrPositionFilled
	}

	r.Rosters[seat][positionID] = playerData
	r.Touch(e.clock.Now())

	log.Info().
		Str("room_code", r.Code).
		Int("seat", seat).
		Str("position_id", positionID).
		Msg("player selected")

	e.broadcast.ToRoom(r.Code, events.TypePlayerSelected, events.PlayerSelectedPayload{
		Seat:       seat,
		PositionID: positionID,
		PlayerData: playerData,
		Rosters:    copyRosters(r.Rosters),
	})
	e.advanceTurnLocked(r)
	return nil
}

// Skip advances the turn at the acting seat's request.
func (e *Engine) Skip(r *room.Room, seat int) error {
	r.Lock()
	defer r.Unlock()

	if seat != r.CurrentTurn {
		return room.ErrNotYourTurn
	}

	log.Info().Str("room_code", r.Code).Int("seat", seat).Msg("turn skipped")

	e.broadcast.ToRoom(r.Code, events.TypeTurnSkipped, events.TurnSkippedPayload{Seat: seat})
	e.advanceTurnLocked(r)
	return nil
}

// Remaining reports the countdown state for a room: time left until the
// deadline (clamped at zero), the acting seat, and whether a game is active.
func (e *Engine) Remaining(r *room.Room) (time.Duration, int, bool) {
	r.Lock()
	defer r.Unlock()

	if r.TurnDeadline.IsZero() {
		return 0, r.CurrentTurn, false
	}
	remaining := r.TurnDeadline.Sub(e.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, r.CurrentTurn, true
}

// ExpireIfDue advances the turn when the deadline has passed. The check and
// the advance are one atomic unit, so a selection racing the timer cannot
// cause a double advance.
func (e *Engine) ExpireIfDue(r *room.Room) bool {
	r.Lock()
	defer r.Unlock()

	if r.TurnDeadline.IsZero() || e.clock.Now().Before(r.TurnDeadline) {
		return false
	}

	log.Info().
		Str("room_code", r.Code).
		Int("seat", r.CurrentTurn).
		Msg("turn timed out, forcing advance")

	e.advanceTurnLocked(r)
	return true
}

// advanceTurnLocked is the single chokepoint for turn progression, shared by
// selection, skip and timer expiry. Turn order is a fixed round robin over
// seats 1..3 regardless of occupancy. Caller must hold the room lock.
func (e *Engine) advanceTurnLocked(r *room.Room) {
	if r.CurrentTurn >= room.MaxSeats {
		r.CurrentTurn = 1
	} else {
		r.CurrentTurn++
	}
	r.TurnDeadline = e.clock.Now().Add(r.TurnDuration)

	e.broadcast.ToRoom(r.Code, events.TypeTurnChanged, events.TurnChangedPayload{
		CurrentTurn:  r.CurrentTurn,
		TurnDeadline: r.TurnDeadline,
	})
}

func copyRosters(rosters map[int]map[string]json.RawMessage) map[int]map[string]json.RawMessage {
	out := make(map[int]map[string]json.RawMessage, len(rosters))
	for seat, positions := range rosters {
		cp := make(map[string]json.RawMessage, len(positions))
		for pos, payload := range positions {
			cp[pos] = payload
		}
		out[seat] = cp
	}
	return out
}
