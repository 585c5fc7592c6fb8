package hangman

import (
	"context"
	"sync"
	"time"

	"github.com/cereales/pendu/pkg/channel"
	"github.com/cereales/pendu/pkg/turn"
)

var testWatchdog = turn.Watchdog{Grace: 2 * time.Millisecond, Interval: 10 * time.Millisecond}

// recorder is a channel.Sender keeping every response.
type recorder struct {
	mu   sync.Mutex
	sent []channel.Response
	err  error
}

func (r *recorder) Send(_ context.Context, resp channel.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, resp)
	return nil
}

func (r *recorder) contents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.Content
	}
	return out
}

// scriptedView answers every turn from a fixed list of letters, recording
// the answer inside Call. It keeps a log of what the controller asked for.
type scriptedView struct {
	mu      sync.Mutex
	letters []rune
	states  []State
	log     *[]string
	skip    map[int]bool // turns (0-based call index) left unanswered
	fail    error
	calls   int
}

func (s *scriptedView) ID() string { return "room" }

func (s *scriptedView) Call(_ context.Context, cb *Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	s.states = append(s.states, cb.Inputs())
	if s.fail != nil {
		return s.fail
	}
	if s.skip[idx] || len(s.letters) == 0 {
		return nil
	}
	r := s.letters[0]
	s.letters = s.letters[1:]
	return cb.RecordAnswer(Guess{Letter: r, Player: "alice"})
}

func (s *scriptedView) SendGameOver(_ context.Context, secret string) error {
	s.note("game over " + secret)
	return nil
}

func (s *scriptedView) SendVictory(_ context.Context, secret string) error {
	s.note("victory " + secret)
	return nil
}

func (s *scriptedView) note(line string) {
	if s.log != nil {
		*s.log = append(*s.log, line)
	}
}
