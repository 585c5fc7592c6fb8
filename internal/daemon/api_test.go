package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cereales/pendu/pkg/events"
	"github.com/cereales/pendu/pkg/scoreboard"
	"github.com/cereales/pendu/pkg/words"
)

func newAPIDaemon(t *testing.T, cfg *Config) *Daemon {
	t.Helper()
	board, err := scoreboard.Open(filepath.Join(t.TempDir(), "pendu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { board.Close() })
	src, err := words.New([]string{"zoo"})
	require.NoError(t, err)
	d, err := New(cfg, board, src)
	require.NoError(t, err)
	return d
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	h := d.Router()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	d.healthy.Store(true)
	rec = get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestScoreboardAndRecentGames(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	now := time.Now()
	require.NoError(t, d.board.RecordGame(context.Background(), scoreboard.Game{
		ID: "g1", Room: "fake:!r", Source: "fake", Mode: scoreboard.ModePlayers,
		Secret: "zoo", Won: true, LivesLeft: 11, Turns: 1,
		StartedAt: now, FinishedAt: now,
		Guesses: []scoreboard.Guess{{Turn: 1, Player: "@bob", Letter: "o", Hit: true}},
	}))
	h := d.Router()

	rec := get(t, h, "/v1/scoreboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Players []scoreboard.PlayerScore `json:"players"`
		Stats   scoreboard.Stats         `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Players, 1)
	assert.Equal(t, "@bob", board.Players[0].Player)
	assert.Equal(t, 1, board.Stats.Won)

	rec = get(t, h, "/v1/games/recent?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Games []scoreboard.Game `json:"games"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	assert.Equal(t, 1, recent.Count)
	assert.Equal(t, "g1", recent.Games[0].ID)
}

func TestActiveGamesEmpty(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	rec := get(t, d.Router(), "/v1/games")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"games": [], "count": 0}`, rec.Body.String())
}

func TestActiveGamesListsRunningGame(t *testing.T) {
	h := startDaemon(t, testConfig(), "zoo")
	h.ch.say(t, "@bob", "!pendu")
	h.waitForTurn(t)

	rec := get(t, h.d.Router(), "/v1/games")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Games []activeGame `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Games, 1)
	g := body.Games[0]
	assert.Equal(t, "z__", g.Revealed)
	assert.Equal(t, 11, g.Lives)
	assert.Equal(t, "@bob", g.StartedBy)
	assert.True(t, g.Waiting)
}

func TestJanitorEndpoint(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	assert.Equal(t, http.StatusNotFound, get(t, d.Router(), "/v1/janitor").Code)

	cfg := testConfig()
	cfg.Janitor.Disabled = false
	d = newAPIDaemon(t, cfg)
	h := d.Router()
	assert.Equal(t, http.StatusNoContent, get(t, h, "/v1/janitor").Code)

	d.janitor.CleanOnce(context.Background())
	rec := get(t, h, "/v1/janitor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cycle_number": 1`)
}

func TestEventsWebsocket(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	d.Events().Publish(events.Event{Type: events.Status, Message: "before connect"})

	srv := httptest.NewServer(d.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first events.Event
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "before connect", first.Message)

	require.Eventually(t, func() bool { return d.Events().SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	d.Events().Publish(events.Event{Type: events.GameStarted, Room: "fake:!r"})

	var second events.Event
	require.NoError(t, ws.ReadJSON(&second))
	assert.Equal(t, events.GameStarted, second.Type)
}

func TestEventsSSE(t *testing.T) {
	d := newAPIDaemon(t, testConfig())
	d.Events().Publish(events.Event{Type: events.Status, Message: "hello"})

	srv := httptest.NewServer(d.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "data: {"))
	assert.Contains(t, string(buf[:n]), `"message":"hello"`)
}
