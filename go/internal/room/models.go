package room

import (
	"encoding/json"
	"sync"
	"time"
)

// MaxSeats is the number of seats in every room.
const MaxSeats = 3

// Occupant is a seated participant's identity within a room.
type Occupant struct {
	ConnID string `json:"-"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
}

// Room holds the full state of one active draft room. All mutation of a Room
// must happen under its lock; different rooms are fully independent.
type Room struct {
	mu sync.Mutex

	// Code is immutable after creation.
	Code string

	// Seats maps seat number (1..MaxSeats) to its occupant; a missing key
	// means the seat is empty.
	Seats map[int]*Occupant

	// Rosters maps seat number -> position identifier -> selection payload.
	// A position, once filled, is never overwritten.
	Rosters map[int]map[string]json.RawMessage

	// CurrentTurn is the seat authorized to act, cycling 1 -> 2 -> 3 -> 1.
	CurrentTurn int

	// TurnDeadline is the absolute time at which the current turn is forced
	// to advance. Zero while no game is active.
	TurnDeadline time.Time

	// TurnDuration is fixed at creation.
	TurnDuration time.Duration

	CreatedAt  time.Time
	LastActive time.Time

	// removed is set when the registry drops the room. A join that looked
	// the room up before removal observes it and is rejected.
	removed bool
}

// Lock acquires the room's mutex. Every validate-then-mutate sequence on the
// room must run between Lock and Unlock as one unit.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room's mutex.
func (r *Room) Unlock() { r.mu.Unlock() }

// OccupiedSeats returns how many seats currently have an occupant.
// Caller must hold the room lock.
func (r *Room) OccupiedSeats() int {
	n := 0
	for _, occ := range r.Seats {
		if occ != nil {
			n++
		}
	}
	return n
}

// Touch records activity on the room, deferring idle reaping.
// Caller must hold the room lock.
func (r *Room) Touch(now time.Time) {
	r.LastActive = now
}

// SeatView is the wire representation of one seat.
type SeatView struct {
	Seat     int    `json:"seat"`
	Occupied bool   `json:"occupied"`
	Name     string `json:"name,omitempty"`
	Ready    bool   `json:"ready,omitempty"`
}

// Snapshot is a point-in-time copy of room state, safe to marshal after the
// room lock has been released.
type Snapshot struct {
	RoomCode        string                             `json:"roomCode"`
	Seats           []SeatView                         `json:"seats"`
	Rosters         map[int]map[string]json.RawMessage `json:"rosters"`
	CurrentTurn     int                                `json:"currentTurn"`
	TurnDeadline    *time.Time                         `json:"turnDeadline,omitempty"`
	TurnDurationSec int                                `json:"turnDurationSec"`
}

// Snapshot copies the room's state. Caller must hold the room lock.
func (r *Room) Snapshot() Snapshot {
	snap := Snapshot{
		RoomCode:        r.Code,
		Seats:           make([]SeatView, 0, MaxSeats),
		Rosters:         make(map[int]map[string]json.RawMessage, MaxSeats),
		CurrentTurn:     r.CurrentTurn,
		TurnDurationSec: int(r.TurnDuration / time.Second),
	}
	for seat := 1; seat <= MaxSeats; seat++ {
		view := SeatView{Seat: seat}
		if occ := r.Seats[seat]; occ != nil {
			view.Occupied = true
			view.Name = occ.Name
			view.Ready = occ.Ready
		}
		snap.Seats = append(snap.Seats, view)

		positions := make(map[string]json.RawMessage, len(r.Rosters[seat]))
		for pos, payload := range r.Rosters[seat] {
			positions[pos] = payload
		}
		snap.Rosters[seat] = positions
	}
	if !r.TurnDeadline.IsZero() {
		d := r.TurnDeadline
		snap.TurnDeadline = &d
	}
	return snap
}

// ParticipantRecord binds a live connection to its seat in a room. Records
// live only as long as the connection does.
type ParticipantRecord struct {
	ConnID   string
	Seat     int
	RoomCode string
	Name     string
}
