package hangman

import (
	"fmt"
	"strings"

	"github.com/cereales/pendu/internal/nls"
)

// Drawing renders the word next to an ASCII gallows inside a code block.
// Each lost life adds one stroke; with no error only the word is shown.
func Drawing(revealed []rune, lives int, misses []rune, text *nls.Catalog) string {
	word := spaced(revealed)
	errs := MaxLives - lives
	if errs <= 0 {
		return "```" + word + "```"
	}

	step := func(at int, s string) string {
		if errs >= at {
			return s
		}
		return strings.Repeat(" ", len(s))
	}
	base := "|"
	if errs == 1 {
		base = "_"
	}

	prefix := strings.Repeat(" ", max(len(revealed)*2-1, 0))
	const inter = "   "
	return strings.Join([]string{
		"```",
		prefix + inter + "  " + step(4, "_____"),
		prefix + inter + "  " + step(2, "|") + step(3, "/") + "  " + step(5, "|"),
		prefix + inter + "  " + step(2, "|") + "  " + step(10, `\`) + step(6, "O") + step(11, "/") + "  " + text.Get(nls.Errors) + ":",
		word + inter + "  " + step(2, "|") + "   " + step(7, "|") + "   " + spaced(misses),
		prefix + inter + "  " + step(2, "|") + "  " + step(8, "/") + " " + step(9, `\`),
		prefix + inter + step(1, "__") + step(1, base) + step(1, "__"),
		"```",
	}, "\n")
}

// OneLine renders the state on a single line for plain-text consoles.
func OneLine(revealed []rune, lives int, misses []rune, text *nls.Catalog) string {
	word := spaced(revealed)
	if lives >= MaxLives {
		return word
	}
	return fmt.Sprintf("%s  %s %s", word, text.Get(nls.PenduErrors, MaxLives-lives, MaxLives), spaced(misses))
}
