package hangman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cereales/pendu/pkg/turn"
)

// DefaultTurnTimeout is how long a turn waits for a letter before it is
// presented again.
const DefaultTurnTimeout = 600 * time.Second

// GameView is what the controller needs from a view.
type GameView interface {
	turn.View[*Callback]
	ID() string
	SendGameOver(ctx context.Context, secret string) error
	SendVictory(ctx context.Context, secret string) error
}

// Closer releases a view's slot in the orchestrator once its game is over.
type Closer interface {
	CloseView(id string)
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(id string)

func (f CloserFunc) CloseView(id string) { f(id) }

// EventKind classifies controller notifications.
type EventKind string

const (
	EventHit     EventKind = "hit"
	EventMiss    EventKind = "miss"
	EventTimeout EventKind = "timeout"
)

// Event is emitted after each turn, answered or not.
type Event struct {
	Kind  EventKind
	View  string
	Guess Guess
	State State // state after the turn
}

// Played is one answered turn.
type Played struct {
	Guess
	Hit bool
}

// Result summarises a finished or interrupted game.
type Result struct {
	Secret     string
	Won        bool
	Lives      int
	Misses     []rune
	Turns      int
	Timeouts   int
	Played     []Played
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller runs the turn loop of one game.
type Controller struct {
	model    *Model
	view     GameView
	closer   Closer
	timeout  time.Duration
	watchdog turn.Watchdog
	log      *slog.Logger
	observe  func(Event)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTurnTimeout overrides DefaultTurnTimeout. turn.NoTimeout waits forever.
func WithTurnTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithWatchdog sets the readiness polling cadence.
func WithWatchdog(w turn.Watchdog) Option {
	return func(c *Controller) { c.watchdog = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithObserver registers a callback invoked after every turn from the loop
// goroutine.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observe = fn }
}

// NewController binds a model to a view. closer may be nil.
func NewController(m *Model, v GameView, closer Closer, opts ...Option) *Controller {
	c := &Controller{
		model:    m,
		view:     v,
		closer:   closer,
		timeout:  DefaultTurnTimeout,
		watchdog: turn.DefaultWatchdog(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loop plays turns until the game is over, then closes the view's slot and
// announces the result. A timed-out turn is logged and presented again with
// the same state. Cancellation and any other failure end the loop at once
// and are returned without closing the slot or announcing anything.
func (c *Controller) Loop(ctx context.Context) (Result, error) {
	id := c.view.ID()
	res := Result{Secret: c.model.Secret(), StartedAt: time.Now()}

	var last LastTurn
	for !c.model.Over() {
		st := c.model.State(last)
		cb := turn.NewCallback[State, Guess](st)

		err := turn.Call[*Callback](ctx, c.watchdog, c.view, cb, c.timeout)
		switch {
		case err == nil:
		case errors.Is(err, turn.ErrTimeout):
			res.Timeouts++
			c.log.Warn("turn timed out, asking again", "view", id, "timeout", c.timeout, "error", err)
			c.emit(Event{Kind: EventTimeout, View: id, State: st})
			continue
		case ctx.Err() != nil:
			return c.finish(res), err
		default:
			c.log.Error("turn failed", "view", id, "turn", res.Turns+1, "error", err)
			return c.finish(res), fmt.Errorf("turn %d: %w", res.Turns+1, err)
		}

		g, _ := cb.Answer()
		hit := c.model.TryLetter(g.Letter)
		res.Turns++
		res.Played = append(res.Played, Played{Guess: g, Hit: hit})

		kind := EventMiss
		last = LastTurn{Result: Miss}
		if hit {
			kind = EventHit
			last = LastTurn{Letter: g.Letter, Result: Hit}
		}
		c.log.Debug("letter played", "view", id, "letter", string(g.Letter), "player", g.Player, "hit", hit, "lives", c.model.Lives())
		c.emit(Event{Kind: kind, View: id, Guess: g, State: c.model.State(last)})
	}

	if c.closer != nil {
		c.closer.CloseView(id)
	}

	res = c.finish(res)
	res.Won = !c.model.Lost()

	var err error
	if res.Won {
		err = c.view.SendVictory(ctx, res.Secret)
	} else {
		err = c.view.SendGameOver(ctx, res.Secret)
	}
	if err != nil {
		return res, fmt.Errorf("announce result: %w", err)
	}
	c.log.Info("game over", "view", id, "won", res.Won, "turns", res.Turns, "timeouts", res.Timeouts)
	return res, nil
}

func (c *Controller) finish(res Result) Result {
	res.Lives = c.model.Lives()
	res.Misses = c.model.Misses()
	res.FinishedAt = time.Now()
	return res
}

func (c *Controller) emit(e Event) {
	if c.observe != nil {
		c.observe(e)
	}
}
