package room

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(clock clockwork.Clock) *Registry {
	return NewRegistry(clock, 15*time.Second, 10*time.Minute)
}

func TestCreateRoom_SeatsCreatorAtSeatOne(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	r.Lock()
	snap := r.Snapshot()
	r.Unlock()

	assert.Equal(t, r.Code, snap.RoomCode)
	assert.Equal(t, 1, snap.CurrentTurn)
	assert.Nil(t, snap.TurnDeadline)
	assert.Equal(t, 15, snap.TurnDurationSec)

	require.Len(t, snap.Seats, MaxSeats)
	assert.True(t, snap.Seats[0].Occupied)
	assert.Equal(t, "Alice", snap.Seats[0].Name)
	assert.False(t, snap.Seats[1].Occupied)
	assert.False(t, snap.Seats[2].Occupied)

	for seat := 1; seat <= MaxSeats; seat++ {
		assert.Empty(t, snap.Rosters[seat])
	}
}

func TestCreateRoom_CodesAreShortAndUnique(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		r, err := reg.CreateRoom("conn", "Player")
		require.NoError(t, err)

		assert.Len(t, r.Code, 6)
		for _, c := range r.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in code %s", c, r.Code)
		}
		assert.False(t, seen[r.Code], "duplicate code %s", r.Code)
		seen[r.Code] = true
	}
}

func TestCreateRoom_CollisionRetryWidensCode(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())
	reg.rooms["AAAAAA"] = &Room{Code: "AAAAAA"}

	var lengths []int
	reg.newCode = func(length int) (string, error) {
		lengths = append(lengths, length)
		if length == codeLength {
			// Every candidate at the base length collides with the live room.
			return "AAAAAA", nil
		}
		return "BBBBBBB", nil
	}

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	assert.Equal(t, "BBBBBBB", r.Code)
	assert.Equal(t, []int{6, 6, 6, 6, 6, 7}, lengths, "code widens after %d collisions", collisionRetries)

	_, ok := reg.GetRoom("BBBBBBB")
	assert.True(t, ok)
}

func TestJoinRoom_FillsSeatsInOrder(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())
	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	_, seat, err := reg.JoinRoom(r.Code, "conn-2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, seat)

	_, seat, err = reg.JoinRoom(r.Code, "conn-3", "Carol")
	require.NoError(t, err)
	assert.Equal(t, 3, seat)

	_, _, err = reg.JoinRoom(r.Code, "conn-4", "Dave")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRoom_UnknownCode(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())

	_, _, err := reg.JoinRoom("NOSUCH", "conn-1", "Alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoom_ReusesVacatedSeat(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())
	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	_, _, err = reg.JoinRoom(r.Code, "conn-2", "Bob")
	require.NoError(t, err)
	_, _, err = reg.JoinRoom(r.Code, "conn-3", "Carol")
	require.NoError(t, err)

	r.Lock()
	delete(r.Seats, 2)
	r.Unlock()

	_, seat, err := reg.JoinRoom(r.Code, "conn-4", "Dave")
	require.NoError(t, err)
	assert.Equal(t, 2, seat)
}

func TestRemoveRoom_FiresCallback(t *testing.T) {
	reg := newTestRegistry(clockwork.NewFakeClock())

	var removed []string
	reg.OnRemove(func(code string) { removed = append(removed, code) })

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	reg.RemoveRoom(r.Code)
	assert.Equal(t, []string{r.Code}, removed)
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.GetRoom(r.Code)
	assert.False(t, ok)

	// Removing again is a no-op.
	reg.RemoveRoom(r.Code)
	assert.Len(t, removed, 1)
}

func TestReapIdle_RemovesVacatedRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newTestRegistry(clock)

	vacated, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)
	occupied, err := reg.CreateRoom("conn-2", "Bob")
	require.NoError(t, err)

	vacated.Lock()
	delete(vacated.Seats, 1)
	vacated.Unlock()

	clock.Advance(11 * time.Minute)
	reg.reapIdle()

	_, ok := reg.GetRoom(vacated.Code)
	assert.False(t, ok, "vacated room should be reaped")
	_, ok = reg.GetRoom(occupied.Code)
	assert.True(t, ok, "occupied room must survive the reaper")
}

func TestReapIdle_JoinRacingRemovalKeepsRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newTestRegistry(clock)

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	r.Lock()
	delete(r.Seats, 1)
	r.Unlock()
	clock.Advance(11 * time.Minute)
	cutoff := clock.Now().Add(-10 * time.Minute)

	// A join lands between the reaper's candidate snapshot and the removal.
	// The occupancy re-check under both locks keeps the room alive.
	seat, err := reg.seat(r, "conn-2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, seat)

	assert.False(t, reg.removeIfIdle(r, cutoff))
	_, ok := reg.GetRoom(r.Code)
	assert.True(t, ok, "room joined mid-reap must survive")
}

func TestReapIdle_JoinAfterRemovalRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newTestRegistry(clock)

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	r.Lock()
	delete(r.Seats, 1)
	r.Unlock()
	clock.Advance(11 * time.Minute)
	cutoff := clock.Now().Add(-10 * time.Minute)

	require.True(t, reg.removeIfIdle(r, cutoff))

	// A joiner still holding the room from a lookup before the removal is
	// rejected instead of being seated in a dead room.
	_, err = reg.seat(r, "conn-2", "Bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, reg.Len())
}

func TestReapIdle_KeepsRecentlyVacatedRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newTestRegistry(clock)

	r, err := reg.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	r.Lock()
	delete(r.Seats, 1)
	r.Touch(clock.Now())
	r.Unlock()

	clock.Advance(5 * time.Minute)
	reg.reapIdle()

	_, ok := reg.GetRoom(r.Code)
	assert.True(t, ok, "room vacated within the TTL must survive")
}
