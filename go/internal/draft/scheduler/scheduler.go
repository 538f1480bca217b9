package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/room"
)

// DefaultTickInterval is the countdown granularity.
const DefaultTickInterval = 100 * time.Millisecond

// Scheduler runs one cancellable countdown loop per room with an active
// deadline. Each tick broadcasts the remaining time and, on expiry, drives
// the engine's forced turn advance, which resets the deadline and keeps the
// loop alive.
type Scheduler struct {
	clock        clockwork.Clock
	engine       *engine.Engine
	registry     *room.Registry
	broadcast    engine.Broadcaster
	tickInterval time.Duration

	mu    sync.Mutex
	loops map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// New creates a scheduler. tickInterval <= 0 falls back to the default.
func New(clock clockwork.Clock, eng *engine.Engine, registry *room.Registry, broadcast engine.Broadcaster, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		clock:        clock,
		engine:       eng,
		registry:     registry,
		broadcast:    broadcast,
		tickInterval: tickInterval,
		loops:        make(map[string]context.CancelFunc),
	}
}

// Start launches the countdown loop for a room. At most one loop runs per
// room; starting a room whose loop is already running is a no-op.
func (s *Scheduler) Start(ctx context.Context, roomCode string) {
	s.mu.Lock()
	if _, running := s.loops[roomCode]; running {
		s.mu.Unlock()
		log.Debug().Str("room_code", roomCode).Msg("countdown already running, not spawning duplicate")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.loops[roomCode] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	log.Info().Str("room_code", roomCode).Dur("tick_interval", s.tickInterval).Msg("countdown started")
	go s.run(loopCtx, roomCode)
}

// Stop cancels the countdown loop for a room, if one is running.
func (s *Scheduler) Stop(roomCode string) {
	s.mu.Lock()
	cancel, running := s.loops[roomCode]
	if running {
		delete(s.loops, roomCode)
	}
	s.mu.Unlock()

	if running {
		cancel()
		log.Info().Str("room_code", roomCode).Msg("countdown stopped")
	}
}

// StopAll cancels every countdown loop and waits for them to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for code, cancel := range s.loops {
		cancel()
		delete(s.loops, code)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Running reports whether a countdown loop is active for the room.
func (s *Scheduler) Running(roomCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.loops[roomCode]
	return running
}

func (s *Scheduler) run(ctx context.Context, roomCode string) {
	defer s.wg.Done()
	defer s.remove(roomCode)

	ticker := s.clock.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r, ok := s.registry.GetRoom(roomCode)
			if !ok {
				log.Info().Str("room_code", roomCode).Msg("room gone, countdown exiting")
				return
			}

			remaining, currentTurn, active := s.engine.Remaining(r)
			if !active {
				log.Info().Str("room_code", roomCode).Msg("deadline cleared, countdown exiting")
				return
			}

			s.broadcast.ToRoom(roomCode, events.TypeTimerUpdate, events.TimerUpdatePayload{
				RemainingMs: remaining.Milliseconds(),
				CurrentTurn: currentTurn,
			})

			if remaining == 0 {
				s.engine.ExpireIfDue(r)
			}
		}
	}
}

// remove clears the loop entry when a run exits on its own (room gone or
// deadline cleared) rather than through Stop.
func (s *Scheduler) remove(roomCode string) {
	s.mu.Lock()
	if cancel, ok := s.loops[roomCode]; ok {
		delete(s.loops, roomCode)
		cancel()
	}
	s.mu.Unlock()
}
