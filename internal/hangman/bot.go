package hangman

import (
	"context"
	"fmt"
	"time"

	"github.com/cereales/pendu/internal/nls"
)

// BotPlayer is the player name recorded for automated guesses.
const BotPlayer = "bot"

// BotView lets a Guesser play in a room while people watch. Unlike View,
// it answers each turn itself before Call returns.
type BotView struct {
	*View
	guesser Guesser
	pause   time.Duration
}

// NewBotView wraps v. pause spaces out the moves so the room can follow.
func NewBotView(v *View, g Guesser, pause time.Duration) *BotView {
	return &BotView{View: v, guesser: g, pause: pause}
}

// Call posts the state, waits for the pause, then records the guesser's letter.
func (b *BotView) Call(ctx context.Context, cb *Callback) error {
	st := cb.Inputs()
	if err := b.Send(ctx, st); err != nil {
		return err
	}

	if b.pause > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.pause):
		}
	}

	letter, err := b.guesser.Guess(ctx, st)
	if err != nil {
		return fmt.Errorf("bot guess: %w", err)
	}
	if err := b.post(ctx, b.text.Get(nls.BotGuess, string(letter))); err != nil {
		return err
	}
	return cb.RecordAnswer(Guess{Letter: letter, Player: BotPlayer})
}
