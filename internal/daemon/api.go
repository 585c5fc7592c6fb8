package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/cereales/pendu/pkg/scoreboard"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // read-only stream
}

// Router builds the daemon's HTTP API.
// Endpoints:
//   - GET /health: health check
//   - GET /v1/games: games running now
//   - GET /v1/games/recent: finished games, newest first
//   - GET /v1/scoreboard: leaderboard and totals
//   - GET /v1/janitor: last maintenance report
//   - GET /v1/events: server-sent event stream
//   - GET /v1/events/ws: the same stream over a websocket
func (d *Daemon) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", d.handleHealth)

	// streams stay open, so only the JSON routes get a deadline
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)
		r.Get("/v1/games", d.handleGames)
		r.Get("/v1/games/recent", d.handleRecentGames)
		r.Get("/v1/scoreboard", d.handleScoreboard)
		r.Get("/v1/janitor", d.handleJanitor)
	})

	r.Get("/v1/events", d.handleEvents)
	r.Get("/v1/events/ws", d.handleEventsWS)
	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.healthy.Load() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","uptime":"%s","errors":%d}`,
			time.Since(d.startedAt).Round(time.Second), d.errCount.Load())
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprint(w, `{"status":"starting"}`)
}

// activeGame is a running game in the /v1/games response.
type activeGame struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Mode      string `json:"mode"`
	StartedBy string `json:"started_by"`
	StartedAt string `json:"started_at"`
	Revealed  string `json:"revealed"`
	Lives     int    `json:"lives"`
	Misses    string `json:"misses"`
	Waiting   bool   `json:"waiting"`
}

func (d *Daemon) handleGames(w http.ResponseWriter, _ *http.Request) {
	games := d.activeGames()
	out := make([]activeGame, 0, len(games))
	for _, g := range games {
		ag := activeGame{
			ID:        g.id,
			Room:      g.key,
			Mode:      g.mode,
			StartedBy: g.startedBy,
			StartedAt: g.startedAt.Format(time.RFC3339),
			Waiting:   g.view.Waiting(),
		}
		if st := g.state.Load(); st != nil {
			ag.Revealed = string(st.Revealed)
			ag.Lives = st.Lives
			ag.Misses = string(st.Misses)
		}
		out = append(out, ag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt < out[j].StartedAt })
	writeJSON(w, map[string]any{"games": out, "count": len(out)})
}

func (d *Daemon) handleRecentGames(w http.ResponseWriter, r *http.Request) {
	games, err := d.board.RecentGames(r.Context(), queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if games == nil {
		games = []scoreboard.Game{}
	}
	writeJSON(w, map[string]any{"games": games, "count": len(games)})
}

func (d *Daemon) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	top, err := d.board.Leaderboard(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := d.board.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if top == nil {
		top = []scoreboard.PlayerScore{}
	}
	writeJSON(w, map[string]any{"players": top, "stats": stats})
}

func (d *Daemon) handleJanitor(w http.ResponseWriter, _ *http.Request) {
	if d.janitor == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("janitor disabled"))
		return
	}
	report := d.janitor.LastReport()
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, report)
}

func (d *Daemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream, done := d.events.Subscribe()
	defer d.events.Unsubscribe(done)

	for _, e := range d.events.Recent(50) {
		fmt.Fprintf(w, "data: %s\n\n", e.Marshal())
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", evt.Marshal())
			flusher.Flush()
		}
	}
}

func (d *Daemon) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	stream, done := d.events.Subscribe()
	defer d.events.Unsubscribe(done)

	// reader loop: only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range d.events.Recent(50) {
		if err := ws.WriteMessage(websocket.TextMessage, e.Marshal()); err != nil {
			return
		}
	}

	// writer loop
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()
	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			err = ws.WriteMessage(websocket.TextMessage, evt.Marshal())
		case <-ticker.C:
			err = ws.WriteMessage(websocket.PingMessage, []byte{})
		}
		if err != nil {
			slog.Debug("event websocket closed", "error", err)
			return
		}
	}
}

func queryLimit(r *http.Request, fallback int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, err.Error())
}
