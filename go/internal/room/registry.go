package room

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// codeAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength = 6
	// After this many collisions the generated code is widened by one
	// character rather than retried at the same length.
	collisionRetries = 5
)

// Registry owns the mapping from room code to Room. It is safe for
// concurrent use; the registry lock covers only the map itself, per-room
// state is guarded by each Room's own lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	clock        clockwork.Clock
	turnDuration time.Duration
	idleTTL      time.Duration

	// newCode produces a candidate room code of the given length.
	newCode func(length int) (string, error)

	// onRemove is invoked after a room leaves the registry, outside the
	// registry lock. Used to cancel the room's countdown loop.
	onRemove func(code string)
}

// NewRegistry creates an empty registry. turnDuration is the per-turn
// countdown applied to every room created through it; idleTTL bounds how long
// a fully vacated room survives before the reaper removes it.
func NewRegistry(clock clockwork.Clock, turnDuration, idleTTL time.Duration) *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		clock:        clock,
		turnDuration: turnDuration,
		idleTTL:      idleTTL,
		newCode:      randomCode,
	}
}

// OnRemove registers the callback invoked whenever a room is removed.
func (reg *Registry) OnRemove(fn func(code string)) {
	reg.onRemove = fn
}

// CreateRoom creates a new room with the creator seated at seat 1.
func (reg *Registry) CreateRoom(connID, displayName string) (*Room, error) {
	now := reg.clock.Now()

	reg.mu.Lock()
	code, err := reg.generateCodeLocked()
	if err != nil {
		reg.mu.Unlock()
		return nil, fmt.Errorf("generate room code: %w", err)
	}

	r := &Room{
		Code: code,
		Seats: map[int]*Occupant{
			1: {ConnID: connID, Name: displayName},
		},
		Rosters:      make(map[int]map[string]json.RawMessage, MaxSeats),
		CurrentTurn:  1,
		TurnDuration: reg.turnDuration,
		CreatedAt:    now,
		LastActive:   now,
	}
	for seat := 1; seat <= MaxSeats; seat++ {
		r.Rosters[seat] = make(map[string]json.RawMessage)
	}
	reg.rooms[code] = r
	total := len(reg.rooms)
	reg.mu.Unlock()

	log.Info().
		Str("room_code", code).
		Str("player_name", displayName).
		Int("active_rooms", total).
		Msg("room created")

	return r, nil
}

// JoinRoom seats displayName at the lowest free seat of {2, 3}. Returns
// ErrRoomNotFound or ErrRoomFull on rejection, leaving the room untouched.
func (reg *Registry) JoinRoom(code, connID, displayName string) (*Room, int, error) {
	r, ok := reg.GetRoom(code)
	if !ok {
		return nil, 0, ErrRoomNotFound
	}

	seat, err := reg.seat(r, connID, displayName)
	if err != nil {
		return nil, 0, err
	}

	log.Info().
		Str("room_code", code).
		Str("player_name", displayName).
		Int("seat", seat).
		Msg("player joined room")

	return r, seat, nil
}

// seat places the joiner at the lowest free seat of {2, 3}. A room the
// registry has already dropped rejects the join, so a lookup racing the
// room's removal cannot strand a participant in a dead room.
func (reg *Registry) seat(r *Room, connID, displayName string) (int, error) {
	r.Lock()
	defer r.Unlock()

	if r.removed {
		return 0, ErrRoomNotFound
	}

	seat := 0
	for s := 2; s <= MaxSeats; s++ {
		if r.Seats[s] == nil {
			seat = s
			break
		}
	}
	if seat == 0 {
		return 0, ErrRoomFull
	}

	r.Seats[seat] = &Occupant{ConnID: connID, Name: displayName}
	r.Touch(reg.clock.Now())
	return seat, nil
}

// GetRoom looks up a room by code.
func (reg *Registry) GetRoom(code string) (*Room, bool) {
	reg.mu.RLock()
	r, ok := reg.rooms[code]
	reg.mu.RUnlock()
	return r, ok
}

// RemoveRoom deletes a room from the registry and fires the removal callback.
// Removing an absent code is a no-op. The room is marked removed under both
// locks so a join holding a stale lookup is rejected rather than seated.
func (reg *Registry) RemoveRoom(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if ok {
		r.Lock()
		r.removed = true
		r.Unlock()
		delete(reg.rooms, code)
	}
	total := len(reg.rooms)
	reg.mu.Unlock()

	if !ok {
		return
	}
	log.Info().Str("room_code", code).Int("active_rooms", total).Msg("room removed")
	if reg.onRemove != nil {
		reg.onRemove(code)
	}
}

// Len returns the number of active rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// generateCodeLocked produces a code unique among live rooms. Caller must
// hold the registry write lock.
func (reg *Registry) generateCodeLocked() (string, error) {
	length := codeLength
	for attempt := 0; ; attempt++ {
		if attempt > 0 && attempt%collisionRetries == 0 {
			length++
		}
		code, err := reg.newCode(length)
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
		log.Warn().Str("room_code", code).Int("attempt", attempt+1).Msg("room code collision, retrying")
	}
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// RunReaper removes rooms whose seats have all been vacated for longer than
// the idle TTL. It blocks until ctx is cancelled.
func (reg *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := reg.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("idle_ttl", reg.idleTTL).Msg("room reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room reaper stopped")
			return
		case <-ticker.Chan():
			reg.reapIdle()
		}
	}
}

func (reg *Registry) reapIdle() {
	cutoff := reg.clock.Now().Add(-reg.idleTTL)

	reg.mu.RLock()
	candidates := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		candidates = append(candidates, r)
	}
	reg.mu.RUnlock()

	for _, r := range candidates {
		reg.removeIfIdle(r, cutoff)
	}
}

// removeIfIdle deletes the room only if it is still fully vacated at the
// moment of removal. The occupancy check and the map delete run under both
// the registry and room locks, so a join landing between the reaper's
// candidate snapshot and the removal keeps the room alive.
func (reg *Registry) removeIfIdle(r *Room, cutoff time.Time) bool {
	reg.mu.Lock()
	r.Lock()
	idle := r.OccupiedSeats() == 0 && r.LastActive.Before(cutoff)
	if idle {
		r.removed = true
		delete(reg.rooms, r.Code)
	}
	r.Unlock()
	total := len(reg.rooms)
	reg.mu.Unlock()

	if !idle {
		return false
	}
	log.Info().Str("room_code", r.Code).Int("active_rooms", total).Msg("reaping idle room")
	if reg.onRemove != nil {
		reg.onRemove(r.Code)
	}
	return true
}
