// Package daemon implements the pendu daemon: the long-running process that
// listens to chat rooms, starts games on command and forwards letters to
// the game running in each room.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cereales/pendu/internal/channel/console"
	"github.com/cereales/pendu/internal/channel/matrix"
	"github.com/cereales/pendu/internal/hangman"
	"github.com/cereales/pendu/internal/llm"
	"github.com/cereales/pendu/internal/nls"
	"github.com/cereales/pendu/pkg/channel"
	"github.com/cereales/pendu/pkg/events"
	"github.com/cereales/pendu/pkg/janitor"
	"github.com/cereales/pendu/pkg/scoreboard"
	"github.com/cereales/pendu/pkg/turn"
	"github.com/cereales/pendu/pkg/words"
)

// Daemon is the main pendu process.
type Daemon struct {
	config   *Config
	board    *scoreboard.Board
	words    *words.Source
	slots    Slots
	// how often a running game renews its slot, zero when slots never expire
	slotRefresh time.Duration
	guesser  hangman.Guesser
	events   *events.Bus
	janitor  *janitor.Worker
	channels map[string]channel.Channel

	language    nls.Lang
	turnTimeout time.Duration
	botPause    time.Duration
	watchdog    turn.Watchdog

	// Runtime state
	startedAt time.Time
	healthy   atomic.Bool
	errCount  atomic.Int64
	games     sync.WaitGroup

	mu     sync.Mutex
	rooms  map[string]*game // room key → running game
	runCtx context.Context
	stop   context.CancelFunc
}

// game is a running game as seen by the orchestrator.
type game struct {
	id        string
	key       string
	room      string
	source    string
	mode      string
	startedBy string
	startedAt time.Time
	view      *hangman.View
	state     atomic.Pointer[hangman.State]
}

// New creates a daemon instance. Channels enabled in cfg are created here;
// more can be added with AddChannel before Run.
func New(cfg *Config, b *scoreboard.Board, src *words.Source) (*Daemon, error) {
	if b == nil {
		return nil, fmt.Errorf("scoreboard is required")
	}
	if src == nil {
		return nil, fmt.Errorf("word source is required")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}

	lang, err := nls.Parse(cfg.Language)
	if err != nil {
		slog.Warn("unsupported default language, using fallback", "language", cfg.Language, "fallback", nls.DefaultLang)
		lang = nls.DefaultLang
	}

	d := &Daemon{
		config:      cfg,
		board:       b,
		words:       src,
		events:      events.NewBus(200),
		channels:    make(map[string]channel.Channel),
		language:    lang,
		turnTimeout: duration(cfg.Game.TurnTimeout, hangman.DefaultTurnTimeout),
		botPause:    duration(cfg.Game.BotPause, time.Second),
		watchdog: turn.Watchdog{
			Grace:    duration(cfg.Game.WatchdogGrace, turn.DefaultGrace),
			Interval: duration(cfg.Game.WatchdogInterval, turn.DefaultInterval),
		},
		startedAt: time.Now(),
		rooms:     make(map[string]*game),
	}

	switch cfg.Slots.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Slots.RedisAddr,
			Password: cfg.Slots.RedisPassword,
			DB:       cfg.Slots.RedisDB,
		})
		ttl := duration(cfg.Slots.TTL, 30*time.Minute)
		d.slots = NewRedisSlots(rdb, ttl)
		d.slotRefresh = ttl / 3
		slog.Info("slot registry configured", "backend", "redis", "addr", cfg.Slots.RedisAddr)
	default:
		d.slots = NewMemorySlots()
	}

	// Bot guesser: LLM when a key is configured, letter frequency otherwise
	fallback := hangman.FrequencyGuesser{}
	if cfg.LLM.Provider == "anthropic" && cfg.LLM.APIKey != "" {
		d.guesser = hangman.NewLLMGuesser(llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL), fallback)
		slog.Info("LLM guesser configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	} else {
		d.guesser = fallback
	}

	if !cfg.Janitor.Disabled {
		jcfg := janitor.DefaultConfig()
		jcfg.Interval = duration(cfg.Janitor.Interval, jcfg.Interval)
		jcfg.Retention = duration(cfg.Janitor.Retention, jcfg.Retention)
		d.janitor = janitor.NewWorker(b, func(typ, msg string) {
			d.events.Publish(events.Event{Type: events.Status, Message: "[janitor] " + msg, Level: "info"})
		}, jcfg)
	}

	if cfg.Matrix.Enabled {
		d.AddChannel(matrix.New(matrix.Config{
			Homeserver: cfg.Matrix.Homeserver,
			UserID:     cfg.Matrix.UserID,
			Password:   cfg.Matrix.Password,
			ServerName: cfg.Matrix.ServerName,
			DataDir:    cfg.Matrix.DataDir,
			Rooms:      cfg.Matrix.Rooms,
			Inviters:   cfg.Matrix.Inviters,
			Ignored:    cfg.Matrix.Ignored,
			Greeting:   nls.MustNew(lang).Get(nls.Help, cfg.Prefix),
		}))
	}
	if cfg.Console.Enabled {
		d.AddChannel(console.NewStdio())
	}

	return d, nil
}

// AddChannel registers a channel. It must be called before Run.
func (d *Daemon) AddChannel(ch channel.Channel) {
	d.channels[ch.Name()] = ch
}

// Events exposes the event bus.
func (d *Daemon) Events() *events.Bus { return d.events }

// ErrorCount returns the number of errors reported since start.
func (d *Daemon) ErrorCount() int64 { return d.errCount.Load() }

// Run starts the channels and background workers. Blocks until ctx is
// cancelled, an admin stops the bot, or a channel fails.
func (d *Daemon) Run(ctx context.Context) error {
	if len(d.channels) == 0 {
		return fmt.Errorf("no channel enabled")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	d.mu.Lock()
	d.runCtx = gctx
	d.stop = cancel
	d.mu.Unlock()

	slog.Info("pendu daemon running",
		"name", d.config.Name,
		"channels", len(d.channels),
		"turn_timeout", d.turnTimeout,
		"slots", d.config.Slots.Backend,
	)

	for _, ch := range d.channels {
		g.Go(func() error {
			slog.Info("starting channel", "channel", ch.Name())
			err := ch.Start(gctx, d.onMessage)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("%s channel fatal error: %w", ch.Name(), err)
			}
			return nil
		})
	}

	if d.config.HTTPAddr != "" {
		srv := &http.Server{Addr: d.config.HTTPAddr, Handler: d.Router()}
		g.Go(func() error {
			slog.Info("API listening", "addr", d.config.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if d.janitor != nil {
		g.Go(func() error {
			d.janitor.Run(gctx)
			return nil
		})
	} else {
		slog.Info("janitor disabled by config")
	}

	if url := d.config.Scoreboard.PostgresURL; url != "" {
		g.Go(func() error {
			d.runMirror(gctx, url)
			return nil
		})
	}

	d.healthy.Store(true)
	d.events.Publish(events.Event{Type: events.Status, Message: "daemon ready", Level: "info"})

	err := g.Wait()

	// Graceful shutdown
	d.healthy.Store(false)
	for _, ch := range d.channels {
		if err := ch.Stop(); err != nil {
			slog.Warn("channel stop failed", "channel", ch.Name(), "error", err)
		}
	}
	d.games.Wait()
	if err := d.slots.Close(); err != nil {
		slog.Warn("slot registry close failed", "error", err)
	}

	slog.Info("pendu daemon shutting down", "errors", d.errCount.Load())
	return err
}

// runMirror replicates finished games to Postgres until ctx is done.
func (d *Daemon) runMirror(ctx context.Context, url string) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mirror, err := scoreboard.NewMirror(initCtx, url)
	if err != nil {
		d.reportError(ctx, "postgres mirror", err)
		return
	}
	defer mirror.Close()
	if err := mirror.Init(initCtx); err != nil {
		d.reportError(ctx, "postgres mirror init", err)
		return
	}

	w := scoreboard.NewSyncWorker(d.board, mirror,
		duration(d.config.Scoreboard.SyncInterval, 30*time.Second),
		d.config.Scoreboard.BatchSize)
	w.Run(ctx)
}

// onMessage dispatches commands and forwards everything else to the room's
// game. It runs on the channel's delivery goroutine, so games are started in
// their own goroutines.
func (d *Daemon) onMessage(ctx context.Context, msg channel.Message) error {
	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, d.config.Prefix) {
		if err := d.command(ctx, msg, strings.TrimPrefix(content, d.config.Prefix)); err != nil {
			d.reportError(ctx, "command "+content, err)
		}
		return nil
	}

	d.mu.Lock()
	gm := d.rooms[roomKey(msg)]
	d.mu.Unlock()
	if gm != nil {
		gm.view.OnMessage(msg)
	}
	return nil
}

func (d *Daemon) command(ctx context.Context, msg channel.Message, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	text := d.catalog(ctx, roomKey(msg))

	switch strings.ToLower(fields[0]) {
	case "pendu":
		mode := scoreboard.ModePlayers
		if len(fields) > 1 && strings.EqualFold(fields[1], "bot") {
			mode = scoreboard.ModeBot
		}
		return d.startGame(msg, mode)

	case "stop":
		if !d.isAdmin(msg.SenderID) {
			slog.Warn("stop refused", "sender", msg.SenderID)
			return d.reply(ctx, msg, text.Get(nls.InvalidRole))
		}
		slog.Info("stop requested", "sender", msg.SenderID)
		err := d.reply(ctx, msg, text.Get(nls.Stopping))
		d.mu.Lock()
		stop := d.stop
		d.mu.Unlock()
		if stop != nil {
			stop()
		}
		return err

	case "lang":
		if len(fields) < 2 {
			return d.reply(ctx, msg, text.Get(nls.LangSet, text.Lang()))
		}
		lang, err := nls.Parse(fields[1])
		if err != nil {
			return d.reply(ctx, msg, text.Get(nls.LangUnknown, fields[1], supportedList()))
		}
		if err := d.board.KVSet(ctx, langKey(roomKey(msg)), string(lang)); err != nil {
			return fmt.Errorf("save language: %w", err)
		}
		return d.reply(ctx, msg, nls.MustNew(lang).Get(nls.LangSet, lang))

	case "scores":
		top, err := d.board.Leaderboard(ctx, 5)
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		if len(top) == 0 {
			return d.reply(ctx, msg, text.Get(nls.NoScores))
		}
		var b strings.Builder
		b.WriteString(text.Get(nls.Scores))
		for i, p := range top {
			fmt.Fprintf(&b, "\n%d. %s  %d/%d (%d)", i+1, p.Player, p.Hits, p.Guesses, p.Wins)
		}
		return d.reply(ctx, msg, b.String())

	case "help":
		return d.reply(ctx, msg, text.Get(nls.Help, d.config.Prefix))
	}

	slog.Debug("unknown command", "command", fields[0], "room", msg.RoomID)
	return nil
}

// startGame claims the room and runs a new game in the background. A room
// that already has a game is left alone.
func (d *Daemon) startGame(msg channel.Message, mode string) error {
	d.mu.Lock()
	ctx := d.runCtx
	d.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return nil
	}

	ch, ok := d.channels[msg.Source]
	if !ok {
		return fmt.Errorf("unknown channel %q", msg.Source)
	}

	key := roomKey(msg)
	if d.hasGame(key) {
		slog.Debug("game already running", "room", key)
		return nil
	}
	id := uuid.NewString()
	acquired, err := d.slots.TryAcquire(ctx, key, id)
	if err != nil {
		return err
	}
	if !acquired {
		slog.Debug("room held by another game", "room", key)
		return nil
	}

	text := d.catalog(ctx, key)
	style := hangman.StyleDrawing
	if ch.Name() == console.Name {
		style = hangman.StyleOneLine
	}
	view := hangman.NewView(msg.RoomID, ch, text, style)
	var gv hangman.GameView = view
	if mode == scoreboard.ModeBot {
		gv = hangman.NewBotView(view, d.guesser, d.botPause)
	}

	gm := &game{
		id:        id,
		key:       key,
		room:      msg.RoomID,
		source:    msg.Source,
		mode:      mode,
		startedBy: msg.SenderID,
		startedAt: time.Now(),
		view:      view,
	}
	model := hangman.NewModel(d.words.Pick())
	st := model.State(hangman.LastTurn{})
	gm.state.Store(&st)

	// the slot may have expired under a game of ours: the local game wins
	d.mu.Lock()
	if cur := d.rooms[key]; cur != nil {
		d.mu.Unlock()
		slog.Warn("slot acquired over a running game", "room", key, "game", cur.id)
		return d.slots.Release(ctx, key, id)
	}
	d.rooms[key] = gm
	d.mu.Unlock()

	l := &lease{d: d, key: key, token: id}
	log := slog.Default().With("room", key, "game", id)
	ctrl := hangman.NewController(model, gv, l,
		hangman.WithTurnTimeout(d.turnTimeout),
		hangman.WithWatchdog(d.watchdog),
		hangman.WithLogger(log),
		hangman.WithObserver(func(e hangman.Event) { d.observe(ctx, gm, e) }),
	)

	log.Info("game started", "mode", mode, "by", msg.SenderID, "length", len([]rune(model.Secret())))
	d.events.Publish(events.Event{
		Type:     events.GameStarted,
		Room:     key,
		GameID:   id,
		Player:   msg.SenderID,
		Revealed: string(model.Revealed()),
		Lives:    intPtr(model.Lives()),
	})

	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}
	if err := ch.Send(ctx, channel.Response{RoomID: msg.RoomID, Content: text.Get(nls.Hello, name)}); err != nil {
		log.Warn("greeting failed", "error", err)
	}

	d.games.Add(1)
	go func() {
		defer d.games.Done()
		defer l.release()
		loopCtx, stopRenew := context.WithCancel(ctx)
		defer stopRenew()
		if d.slotRefresh > 0 {
			go d.renewSlot(loopCtx, gm)
		}
		res, err := ctrl.Loop(loopCtx)
		d.finish(ctx, gm, res, err)
	}()
	return nil
}

// renewSlot keeps the room slot alive while a turn waits for an answer.
func (d *Daemon) renewSlot(ctx context.Context, gm *game) {
	ticker := time.NewTicker(d.slotRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.slots.Refresh(ctx, gm.key, gm.id); err != nil && ctx.Err() == nil {
				slog.Warn("slot refresh failed", "room", gm.key, "error", err)
			}
		}
	}
}

func (d *Daemon) hasGame(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[key] != nil
}

// observe publishes turn events and keeps the game snapshot current.
func (d *Daemon) observe(ctx context.Context, gm *game, e hangman.Event) {
	st := e.State
	gm.state.Store(&st)

	evt := events.Event{
		Room:     gm.key,
		GameID:   gm.id,
		Revealed: string(st.Revealed),
		Lives:    intPtr(st.Lives),
	}
	switch e.Kind {
	case hangman.EventTimeout:
		evt.Type = events.Timeout
	default:
		hit := e.Kind == hangman.EventHit
		evt.Type = events.Turn
		evt.Player = e.Guess.Player
		evt.Letter = string(e.Guess.Letter)
		evt.Hit = &hit
	}
	d.events.Publish(evt)

	if err := d.slots.Refresh(ctx, gm.key, gm.id); err != nil {
		slog.Warn("slot refresh failed", "room", gm.key, "error", err)
	}
}

// finish records a game that ended, normally or not.
func (d *Daemon) finish(ctx context.Context, gm *game, res hangman.Result, loopErr error) {
	if loopErr != nil {
		if ctx.Err() != nil && errors.Is(loopErr, ctx.Err()) {
			slog.Info("game interrupted", "room", gm.key, "game", gm.id)
			return
		}
		d.reportError(ctx, "game "+gm.id, loopErr)
		d.events.Publish(events.Event{Type: events.GameOver, Room: gm.key, GameID: gm.id, Message: "aborted", Level: "error"})
		return
	}

	rec := scoreboard.Game{
		ID:         gm.id,
		Room:       gm.key,
		Source:     gm.source,
		Mode:       gm.mode,
		Secret:     res.Secret,
		Won:        res.Won,
		LivesLeft:  res.Lives,
		Misses:     string(res.Misses),
		Turns:      res.Turns,
		Timeouts:   res.Timeouts,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	for i, p := range res.Played {
		rec.Guesses = append(rec.Guesses, scoreboard.Guess{
			Turn:   i + 1,
			Player: p.Player,
			Letter: string(p.Letter),
			Hit:    p.Hit,
		})
	}
	// the game context may already be gone when the bot is stopping
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.board.RecordGame(saveCtx, rec); err != nil {
		d.reportError(ctx, "record game "+gm.id, err)
	}

	d.events.Publish(events.Event{
		Type:     events.GameOver,
		Room:     gm.key,
		GameID:   gm.id,
		Revealed: res.Secret,
		Lives:    intPtr(res.Lives),
		Message:  outcome(res.Won),
	})
}

// reportError counts err, logs it and posts it to the error room.
func (d *Daemon) reportError(ctx context.Context, where string, err error) {
	n := d.errCount.Add(1)
	slog.Error("error reported", "where", where, "count", n, "error", err)
	d.events.Publish(events.Event{Type: events.Error, Message: where + ": " + err.Error(), Level: "error"})

	if d.config.ErrorRoom == "" {
		return
	}
	ch, ok := d.channels[matrix.Name]
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	content := fmt.Sprintf("%s\n```\n%v\n```", where, err)
	if err := ch.Send(sendCtx, channel.Response{RoomID: d.config.ErrorRoom, Content: content}); err != nil {
		slog.Warn("error report not delivered", "room", d.config.ErrorRoom, "error", err)
	}
}

func (d *Daemon) reply(ctx context.Context, msg channel.Message, content string) error {
	ch, ok := d.channels[msg.Source]
	if !ok {
		return fmt.Errorf("unknown channel %q", msg.Source)
	}
	return ch.Send(ctx, channel.Response{RoomID: msg.RoomID, Content: content})
}

// catalog returns the texts for a room, falling back to the configured
// language when the room has no override.
func (d *Daemon) catalog(ctx context.Context, key string) *nls.Catalog {
	lang := d.language
	if v, err := d.board.KVGet(ctx, langKey(key)); err != nil {
		slog.Warn("read room language failed", "room", key, "error", err)
	} else if l, err := nls.Parse(v); err == nil {
		lang = l
	}
	return nls.MustNew(lang)
}

func (d *Daemon) isAdmin(sender string) bool {
	for _, a := range d.config.Admins {
		if a == sender {
			return true
		}
	}
	return false
}

// activeGames snapshots the running games.
func (d *Daemon) activeGames() []*game {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*game, 0, len(d.rooms))
	for _, g := range d.rooms {
		out = append(out, g)
	}
	return out
}

// lease is a game's hold on its room. The controller releases it when the
// game is over; the game goroutine releases it again on exit so a failed
// game never leaves the room locked.
type lease struct {
	d     *Daemon
	key   string
	token string
	once  sync.Once
}

// CloseView implements hangman.Closer.
func (l *lease) CloseView(string) { l.release() }

func (l *lease) release() {
	l.once.Do(func() {
		l.d.mu.Lock()
		if gm := l.d.rooms[l.key]; gm != nil && gm.id == l.token {
			delete(l.d.rooms, l.key)
		}
		l.d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.d.slots.Release(ctx, l.key, l.token); err != nil {
			slog.Warn("slot release failed", "room", l.key, "error", err)
		}
	})
}

func roomKey(msg channel.Message) string { return msg.Source + ":" + msg.RoomID }

func langKey(room string) string { return "lang:" + room }

func supportedList() string {
	langs := nls.Supported()
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

func intPtr(v int) *int { return &v }

func outcome(won bool) string {
	if won {
		return "won"
	}
	return "lost"
}
