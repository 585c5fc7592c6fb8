// Package hangman implements the pendu game: the word model, the turn loop
// that drives it through pkg/turn, and the views that show it in a chat room.
package hangman

import (
	"strings"
	"unicode"

	"github.com/cereales/pendu/pkg/turn"
)

const (
	// MaxLives is the number of wrong guesses a game allows. The gallows
	// drawing has one stroke per life.
	MaxLives = 11
	// Placeholder marks a letter that is still hidden.
	Placeholder = '_'
)

// TurnResult says what the previous answered turn did.
type TurnResult int

const (
	NoTurn TurnResult = iota
	Hit
	Miss
)

// LastTurn is the outcome of the previous answered turn. Letter is only set
// on a Hit.
type LastTurn struct {
	Letter rune
	Result TurnResult
}

// State is the snapshot a view renders for one turn.
type State struct {
	Revealed []rune
	Lives    int
	Misses   []rune
	Last     LastTurn
}

// Guess is a player's answer to a turn.
type Guess struct {
	Letter rune
	Player string
}

// Callback is the turn record exchanged between the controller and a view.
type Callback = turn.Callback[State, Guess]

// Model is the state of one hangman game. It is owned by a single
// controller and is not safe for concurrent use.
type Model struct {
	secret   []rune
	revealed []rune
	lives    int
	misses   []rune
}

// NewModel starts a game on word. The first letter is shown from the start.
func NewModel(word string) *Model {
	secret := []rune(strings.ToLower(word))
	revealed := make([]rune, len(secret))
	for i := range revealed {
		revealed[i] = Placeholder
	}
	if len(secret) > 0 {
		revealed[0] = secret[0]
	}
	return &Model{
		secret:   secret,
		revealed: revealed,
		lives:    MaxLives,
	}
}

// TryLetter plays one letter, case-insensitively. It returns true when at
// least one hidden position was revealed. Otherwise a life is lost and the
// letter is added to the misses, repeats included.
func (m *Model) TryLetter(r rune) bool {
	r = unicode.ToLower(r)
	hit := false
	for i, s := range m.secret {
		if s == r && m.revealed[i] == Placeholder {
			m.revealed[i] = s
			hit = true
		}
	}
	if !hit {
		m.lives--
		m.misses = append(m.misses, r)
	}
	return hit
}

// Lost reports whether all lives are spent.
func (m *Model) Lost() bool { return m.lives <= 0 }

// Over reports whether the game is lost or fully revealed.
func (m *Model) Over() bool {
	if m.Lost() {
		return true
	}
	for _, r := range m.revealed {
		if r == Placeholder {
			return false
		}
	}
	return true
}

func (m *Model) Secret() string   { return string(m.secret) }
func (m *Model) Lives() int       { return m.lives }
func (m *Model) Revealed() []rune { return append([]rune(nil), m.revealed...) }
func (m *Model) Misses() []rune   { return append([]rune(nil), m.misses...) }

// State snapshots the model for a turn.
func (m *Model) State(last LastTurn) State {
	return State{
		Revealed: m.Revealed(),
		Lives:    m.lives,
		Misses:   m.Misses(),
		Last:     last,
	}
}

// String renders the revealed word, e.g. "t _ _ _".
func (m *Model) String() string { return spaced(m.revealed) }

func spaced(rs []rune) string {
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
