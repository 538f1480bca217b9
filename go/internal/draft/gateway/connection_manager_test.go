package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/room"
)

// setupGateway runs a full gateway (real sockets, real clock) against an
// httptest server and returns the WebSocket URL.
func setupGateway(t *testing.T) string {
	return setupGatewayWithConfig(t, DefaultConnectionConfig())
}

func setupGatewayWithConfig(t *testing.T, config ConnectionConfig) string {
	t.Helper()

	clock := clockwork.NewRealClock()
	reg := room.NewRegistry(clock, 15*time.Second, 10*time.Minute)
	idx := room.NewIndex()

	cm := NewConnectionManager(config)
	eng := engine.NewEngine(clock, cm)
	router := NewRouter(reg, idx, eng, cm, clock, func(string) {})
	cm.OnMessage(router.HandleMessage)
	cm.OnDisconnect(router.HandleDisconnect)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cm.UpgradeConnection(w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(ClientMessage{Type: action, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestGateway_CreateAndJoinOverWebSocket(t *testing.T) {
	url := setupGateway(t)

	creator := dial(t, url)
	send(t, creator, ActionCreateRoom, CreateRoomRequest{PlayerName: "Alice"})

	created := readEvent(t, creator)
	require.Equal(t, events.TypeGameCreated, created.Type)
	assert.NotEmpty(t, created.ID)

	var ack events.GameCreatedPayload
	require.NoError(t, json.Unmarshal(created.Data, &ack))
	assert.Equal(t, 1, ack.Seat)
	assert.Len(t, ack.RoomCode, 6)

	joiner := dial(t, url)
	send(t, joiner, ActionJoinRoom, JoinRoomRequest{RoomCode: ack.RoomCode, PlayerName: "Bob"})

	// Join ack is queued before the room-wide notice, so the joiner sees
	// gameJoined first, then its own playerJoined copy.
	joined := readEvent(t, joiner)
	require.Equal(t, events.TypeGameJoined, joined.Type)
	var joinAck events.GameJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Data, &joinAck))
	assert.Equal(t, 2, joinAck.Seat)

	notice := readEvent(t, joiner)
	assert.Equal(t, events.TypePlayerJoined, notice.Type)

	// The creator receives the room-wide join notice too.
	notice = readEvent(t, creator)
	require.Equal(t, events.TypePlayerJoined, notice.Type)
	assert.Equal(t, ack.RoomCode, notice.RoomCode)

	var joinedPayload events.PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(notice.Data, &joinedPayload))
	assert.Equal(t, "Bob", joinedPayload.PlayerName)
	assert.Equal(t, 2, joinedPayload.Seat)
}

func TestGateway_ErrorGoesToSenderOnly(t *testing.T) {
	url := setupGateway(t)

	conn := dial(t, url)
	send(t, conn, ActionJoinRoom, JoinRoomRequest{RoomCode: "NOSUCH", PlayerName: "Zed"})

	event := readEvent(t, conn)
	require.Equal(t, events.TypeError, event.Type)

	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, "Room not found", payload.Message)
}

func TestGateway_InboundRateLimitDropsWithoutClosing(t *testing.T) {
	config := DefaultConnectionConfig()
	config.MessagesPerSec = 5
	config.MessageBurst = 2
	url := setupGatewayWithConfig(t, config)

	conn := dial(t, url)

	// Each join for an unknown room earns an error reply, so the replies
	// count the messages that got past the limiter.
	for i := 0; i < 10; i++ {
		send(t, conn, ActionJoinRoom, JoinRoomRequest{RoomCode: "NOSUCH", PlayerName: "Zed"})
	}

	// Once the limiter refills, messages flow again on the same connection.
	time.Sleep(500 * time.Millisecond)
	send(t, conn, ActionCreateRoom, CreateRoomRequest{PlayerName: "Zed"})

	errorReplies := 0
	for {
		event := readEvent(t, conn)
		if event.Type == events.TypeGameCreated {
			break
		}
		require.Equal(t, events.TypeError, event.Type)
		errorReplies++
	}
	assert.GreaterOrEqual(t, errorReplies, config.MessageBurst)
	assert.Less(t, errorReplies, 10, "messages past the burst must be dropped")
}

func TestGateway_StatsEndpoint(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	h := NewWebSocketHandler(cm)

	req := httptest.NewRequest(http.MethodGet, "/ws/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleConnectionStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_connections":0,"active_rooms":0}`, rec.Body.String())
}
