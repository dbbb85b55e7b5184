package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duraknet/durak/internal/game"
	"github.com/duraknet/durak/internal/lobby"
)

func TestErrCode(t *testing.T) {
	assert.Equal(t, "ALREADY_IN_SESSION", errCode(lobby.ErrAlreadyInSession))
	assert.Equal(t, "NO_SESSION", errCode(lobby.ErrSessionNotFound))
	assert.Equal(t, "SESSION_FULL", errCode(lobby.ErrSessionFull))
	assert.Equal(t, "NOT_OWNER", errCode(lobby.ErrNotOwner))
	assert.Equal(t, "INTERNAL", errCode(assert.AnError))
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	got, ok := parseUUID(map[string]interface{}{"sessionId": id.String()}, "sessionId")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = parseUUID(map[string]interface{}{"sessionId": "nope"}, "sessionId")
	assert.False(t, ok)
	_, ok = parseUUID(map[string]interface{}{}, "sessionId")
	assert.False(t, ok)
}

func TestNotifyWithoutClient(t *testing.T) {
	h := NewHub([]byte("secret"), nil)
	// Nobody is connected; must be a no-op, not a panic.
	h.Notify(uuid.New(), game.SessionEvent{Type: game.EventState})
}

// dial opens a test connection and returns a reader for decoded messages.
func dial(t *testing.T, url string) (*websocket.Conn, func() map[string]interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	read := func() map[string]interface{} {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}
	return conn, read
}

func send(t *testing.T, conn *websocket.Conn, m Msg) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func testServer(h *Hub) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return httptest.NewServer(mux)
}

func TestSessionLifecycleOverWebsocket(t *testing.T) {
	h := NewHub([]byte("secret"), nil)
	srv := testServer(h)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?name=alice"

	conn, read := dial(t, url)

	hello := read()
	require.Equal(t, "hello", hello["t"])

	send(t, conn, Msg{T: "create_session"})
	created := read()
	require.Equal(t, "session_created", created["t"])
	payload := created["m"].(map[string]interface{})
	sessionID, err := uuid.Parse(payload["sessionId"].(string))
	require.NoError(t, err)

	_, ok := h.Registry.Get(sessionID)
	assert.True(t, ok)

	// Second player joins and the game starts.
	conn2, read2 := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?name=bob")
	require.Equal(t, "hello", read2()["t"])

	send(t, conn2, Msg{T: "join_session", M: map[string]interface{}{"sessionId": sessionID.String()}})
	require.Equal(t, "session_joined", read2()["t"])

	// Bob's arrival is announced to the owner before the deal.
	require.Equal(t, "player_joined", read()["t"])

	send(t, conn, Msg{T: "start_game"})
	started := read()
	require.Equal(t, "game_start", started["t"])
	state := started["state"].(map[string]interface{})
	assert.Len(t, state["hand"], 6)
	require.Equal(t, "game_start", read2()["t"])

	// Only the owner may start or delete.
	send(t, conn2, Msg{T: "delete_session"})
	errMsg := read2()
	require.Equal(t, "error", errMsg["t"])
	assert.Equal(t, "NOT_OWNER", errMsg["m"].(map[string]interface{})["code"])
}

func TestActionWithoutSession(t *testing.T) {
	h := NewHub([]byte("secret"), nil)
	srv := testServer(h)
	defer srv.Close()

	conn, read := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.Equal(t, "hello", read()["t"])

	send(t, conn, Msg{T: "action", M: map[string]interface{}{"token": "0"}})
	errMsg := read()
	require.Equal(t, "error", errMsg["t"])
	assert.Equal(t, "NOT_IN_SESSION", errMsg["m"].(map[string]interface{})["code"])
}
