package hangman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cereales/pendu/internal/llm"
)

// FrenchFrequency orders letters by how often they appear in French.
const FrenchFrequency = "esaitnrulodcpmvqfbghjxyzwk"

// ErrNoLetterLeft is returned when every candidate letter was already played.
var ErrNoLetterLeft = errors.New("hangman: no letter left to try")

// Guesser picks the next letter for an automated player.
type Guesser interface {
	Guess(ctx context.Context, st State) (rune, error)
}

// FrequencyGuesser plays the most frequent letter not tried yet.
type FrequencyGuesser struct {
	Order string // empty means FrenchFrequency
}

func (g FrequencyGuesser) Guess(_ context.Context, st State) (rune, error) {
	order := g.Order
	if order == "" {
		order = FrenchFrequency
	}
	tried := triedLetters(st)
	for _, r := range order {
		if !tried[r] {
			return r, nil
		}
	}
	return 0, ErrNoLetterLeft
}

// LLMGuesser asks a language model for the next letter and falls back to
// another guesser when the model fails or suggests an unusable letter.
type LLMGuesser struct {
	provider llm.Provider
	fallback Guesser
	log      *slog.Logger
}

// NewLLMGuesser creates a guesser backed by p. A nil fallback uses letter
// frequency.
func NewLLMGuesser(p llm.Provider, fallback Guesser) *LLMGuesser {
	if fallback == nil {
		fallback = FrequencyGuesser{}
	}
	return &LLMGuesser{provider: p, fallback: fallback, log: slog.Default()}
}

const guesserSystemPrompt = `You are playing hangman in French. Reply with exactly one lowercase letter and nothing else.`

func (g *LLMGuesser) Guess(ctx context.Context, st State) (rune, error) {
	prompt := fmt.Sprintf(
		"Known word: %s. Wrong letters: [%s]. Lives left: %d. Suggest ONE new letter that has not been tried.",
		spaced(st.Revealed), spaced(st.Misses), st.Lives,
	)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		System:      guesserSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   8,
		Temperature: 0.2,
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		g.log.Warn("llm guess failed, using fallback", "provider", g.provider.Name(), "error", err)
		return g.fallback.Guess(ctx, st)
	}

	letter, ok := firstLetter(resp.Content)
	if !ok || triedLetters(st)[letter] {
		g.log.Info("llm guessed invalid or repeated letter, using fallback",
			"provider", g.provider.Name(),
			"reply", strings.TrimSpace(resp.Content),
		)
		return g.fallback.Guess(ctx, st)
	}
	return letter, nil
}

func firstLetter(s string) (rune, bool) {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if !unicode.IsLetter(r) {
		return 0, false
	}
	return unicode.ToLower(r), true
}

func triedLetters(st State) map[rune]bool {
	tried := make(map[rune]bool, len(st.Revealed)+len(st.Misses))
	for _, r := range st.Revealed {
		if r != Placeholder {
			tried[r] = true
		}
	}
	for _, r := range st.Misses {
		tried[r] = true
	}
	return tried
}
