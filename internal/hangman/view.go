package hangman

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cereales/pendu/internal/nls"
	"github.com/cereales/pendu/pkg/channel"
	"github.com/cereales/pendu/pkg/turn"
)

// Style selects how a view renders the game.
type Style int

const (
	// StyleDrawing renders the gallows in a code block.
	StyleDrawing Style = iota
	// StyleOneLine renders a single plain line.
	StyleOneLine
)

// View shows a game in one chat room and collects letters typed there.
// Call opens a turn and posts the state; OnMessage answers the open turn.
type View struct {
	room  string
	out   channel.Sender
	text  *nls.Catalog
	style Style
	log   *slog.Logger

	turns turn.Pending[Callback]
}

// NewView creates a view posting to room through out.
func NewView(room string, out channel.Sender, text *nls.Catalog, style Style) *View {
	return &View{
		room:  room,
		out:   out,
		text:  text,
		style: style,
		log:   slog.Default().With("room", room),
	}
}

// ID identifies the view in the orchestrator's registry.
func (v *View) ID() string { return v.room }

// Call opens cb as the current turn, then posts the game state.
func (v *View) Call(ctx context.Context, cb *Callback) error {
	v.turns.Open(cb)
	return v.Send(ctx, cb.Inputs())
}

// Waiting reports whether a turn is open for input.
func (v *View) Waiting() bool { return v.turns.IsOpen() }

// OnMessage offers a room message to the open turn. Only a single character
// is accepted, and only while a turn is open; anything else is ignored.
// It reports whether the message was taken as an answer.
func (v *View) OnMessage(msg channel.Message) bool {
	content := strings.TrimSpace(msg.Content)
	if utf8.RuneCountInString(content) != 1 || !v.turns.IsOpen() {
		v.log.Debug("ignore message", "id", msg.ID)
		return false
	}
	cb := v.turns.Take()
	if cb == nil {
		v.log.Debug("ignore message, turn already answered", "id", msg.ID)
		return false
	}

	letter, _ := utf8.DecodeRuneInString(content)
	if err := cb.RecordAnswer(Guess{Letter: letter, Player: msg.SenderID}); err != nil {
		v.log.Warn("answer rejected", "id", msg.ID, "error", err)
		return false
	}
	return true
}

// Send posts the current state of the game.
func (v *View) Send(ctx context.Context, st State) error {
	return v.post(ctx, v.render(st.Revealed, st.Lives, st.Misses))
}

// SendGameOver reveals the secret after a loss.
func (v *View) SendGameOver(ctx context.Context, secret string) error {
	return v.post(ctx, v.text.Get(nls.PenduLose, secret))
}

// SendVictory shows the solved word, then the winning message.
func (v *View) SendVictory(ctx context.Context, secret string) error {
	if err := v.post(ctx, v.render([]rune(secret), MaxLives, nil)); err != nil {
		return err
	}
	return v.post(ctx, v.text.Get(nls.PenduWin))
}

func (v *View) render(revealed []rune, lives int, misses []rune) string {
	if v.style == StyleOneLine {
		return OneLine(revealed, lives, misses, v.text)
	}
	return Drawing(revealed, lives, misses, v.text)
}

func (v *View) post(ctx context.Context, content string) error {
	if err := v.out.Send(ctx, channel.Response{RoomID: v.room, Content: content}); err != nil {
		return fmt.Errorf("post to %s: %w", v.room, err)
	}
	return nil
}
