package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/scheduler"
	"github.com/mcdev12/draftroom/go/internal/room"
)

// Service wires the transport, router, turn engine and timer scheduler into
// the draft room gateway.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	registry          *room.Registry
	index             *room.Index
	engine            *engine.Engine
	scheduler         *scheduler.Scheduler
	clock             clockwork.Clock

	reapInterval time.Duration
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	TickInterval     time.Duration
	ReapInterval     time.Duration
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		TickInterval:     scheduler.DefaultTickInterval,
		ReapInterval:     time.Minute,
	}
}

// NewService assembles the gateway around an existing registry and
// participant index. sink may be nil; when set it receives a copy of every
// room-scoped event.
func NewService(config Config, clock clockwork.Clock, registry *room.Registry, index *room.Index, sink EventSink) *Service {
	cm := NewConnectionManager(config.ConnectionConfig)
	if sink != nil {
		cm.SetSink(sink)
	}

	eng := engine.NewEngine(clock, cm)
	sched := scheduler.New(clock, eng, registry, cm, config.TickInterval)

	// A removed room must never leave a countdown loop behind.
	registry.OnRemove(sched.Stop)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		registry:          registry,
		index:             index,
		engine:            eng,
		scheduler:         sched,
		clock:             clock,
		reapInterval:      config.ReapInterval,
	}
}

// Start runs the gateway until ctx is cancelled: inbound routing, broadcast
// fan-out and the idle-room reaper. Countdown loops started on behalf of
// rooms inherit ctx.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	router := NewRouter(s.registry, s.index, s.engine, s.connectionManager, s.clock, func(roomCode string) {
		s.scheduler.Start(ctx, roomCode)
	})
	s.connectionManager.OnMessage(router.HandleMessage)
	s.connectionManager.OnDisconnect(router.HandleDisconnect)

	go s.registry.RunReaper(ctx, s.reapInterval)

	s.connectionManager.Start(ctx)

	s.scheduler.StopAll()
	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}
