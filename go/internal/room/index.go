package room

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Index maps a live connection to its seat in a room. It is maintained in
// lockstep with the registry on join, create and disconnect; records are
// never persisted.
type Index struct {
	mu      sync.RWMutex
	records map[string]ParticipantRecord
}

// NewIndex creates an empty participant index.
func NewIndex() *Index {
	return &Index{records: make(map[string]ParticipantRecord)}
}

// Bind records the mapping for a connection. A connection is expected to be
// bound once for its lifetime; rebinding simply overwrites the prior record.
func (idx *Index) Bind(connID string, seat int, roomCode, name string) {
	idx.mu.Lock()
	prior, had := idx.records[connID]
	idx.records[connID] = ParticipantRecord{
		ConnID:   connID,
		Seat:     seat,
		RoomCode: roomCode,
		Name:     name,
	}
	idx.mu.Unlock()

	if had {
		log.Warn().
			Str("connection_id", connID).
			Str("prior_room", prior.RoomCode).
			Str("room_code", roomCode).
			Msg("rebound connection that was already seated")
	}
}

// Lookup returns the record for a connection, if any.
func (idx *Index) Lookup(connID string) (ParticipantRecord, bool) {
	idx.mu.RLock()
	rec, ok := idx.records[connID]
	idx.mu.RUnlock()
	return rec, ok
}

// Unbind removes and returns the record for a connection. Used by disconnect
// handling; unbinding an unknown connection reports ok=false.
func (idx *Index) Unbind(connID string) (ParticipantRecord, bool) {
	idx.mu.Lock()
	rec, ok := idx.records[connID]
	if ok {
		delete(idx.records, connID)
	}
	idx.mu.Unlock()
	return rec, ok
}

// Len returns the number of live bindings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}
