// Package nls holds the user-facing texts of the bot in every supported
// language. Texts take positional arguments written {0}, {1}, ...
package nls

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Lang is a language code.
type Lang string

const (
	English Lang = "en"
	French  Lang = "fr"

	DefaultLang = English
)

// Key identifies a text.
type Key string

const (
	Default     Key = "DEFAULT"
	Errors      Key = "ERRORS"
	Hello       Key = "HELLO"
	InvalidRole Key = "INVALID_ROLE"
	PenduErrors Key = "PENDU_ERRORS"
	PenduLose   Key = "PENDU_LOSE"
	PenduWin    Key = "PENDU_WIN"
	BotGuess    Key = "BOT_GUESS"
	Help        Key = "HELP"
	LangSet     Key = "LANG_SET"
	LangUnknown Key = "LANG_UNKNOWN"
	Scores      Key = "SCORES"
	NoScores    Key = "NO_SCORES"
	Stopping    Key = "STOPPING"
)

// ErrUnsupported is returned for language codes without a catalog.
var ErrUnsupported = errors.New("nls: unsupported language")

var catalogs = map[Lang]map[Key]string{
	English: {
		Default:     "Default",
		Errors:      "Errors",
		Hello:       "Hello {0}",
		InvalidRole: "You do not have permissions for this command.",
		PenduErrors: "{0} errors/{1}",
		PenduLose:   "Game Over... The correct word was {0}.",
		PenduWin:    "Winner !",
		BotGuess:    "I try {0}.",
		Help:        "Commands: {0}pendu, {0}pendu bot, {0}scores, {0}lang <code>, {0}stop (admins).",
		LangSet:     "Language set to {0}.",
		LangUnknown: "Unsupported language {0}. Available: {1}.",
		Scores:      "Best players:",
		NoScores:    "No finished game yet.",
		Stopping:    "Shutting down.",
	},
	French: {
		Default:     "ValeurDefaut",
		Errors:      "Erreurs",
		Hello:       "Bonjour {0}",
		InvalidRole: "Tu n'as pas les authorisations pour cette commande.",
		PenduErrors: "{0} erreurs/{1}",
		PenduLose:   "Perdu... Le mot à trouver était {0}.",
		PenduWin:    "Gagné !",
		BotGuess:    "Je propose {0}.",
		Help:        "Commandes : {0}pendu, {0}pendu bot, {0}scores, {0}lang <code>, {0}stop (admins).",
		LangSet:     "Langue réglée sur {0}.",
		LangUnknown: "Langue {0} non supportée. Disponibles : {1}.",
		Scores:      "Meilleurs joueurs :",
		NoScores:    "Aucune partie terminée.",
		Stopping:    "Arrêt en cours.",
	},
}

// Parse validates a language code. Codes are case-sensitive.
func Parse(code string) (Lang, error) {
	l := Lang(code)
	if _, ok := catalogs[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, code)
	}
	return l, nil
}

// Supported lists the available language codes, sorted.
func Supported() []Lang {
	out := make([]Lang, 0, len(catalogs))
	for l := range catalogs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Catalog renders texts in one language.
type Catalog struct {
	lang Lang
	log  *slog.Logger
}

// New returns the catalog for lang.
func New(lang Lang) (*Catalog, error) {
	if _, err := Parse(string(lang)); err != nil {
		return nil, err
	}
	return &Catalog{lang: lang, log: slog.Default()}, nil
}

// MustNew is New for compile-time constants.
func MustNew(lang Lang) *Catalog {
	c, err := New(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Lang returns the catalog language.
func (c *Catalog) Lang() Lang { return c.lang }

// Get renders key with args. An unknown key or a missing argument is logged
// and yields the Default text instead.
func (c *Catalog) Get(key Key, args ...any) string {
	tmpl, ok := catalogs[c.lang][key]
	if !ok {
		c.log.Error("cannot get requested message", "key", key, "lang", c.lang)
		return catalogs[c.lang][Default]
	}
	out, err := format(tmpl, args)
	if err != nil {
		c.log.Error("missing parameters for message", "key", key, "lang", c.lang, "error", err)
		return catalogs[c.lang][Default]
	}
	return out
}

// format substitutes {n} placeholders with args[n].
func format(tmpl string, args []any) (string, error) {
	var b strings.Builder
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			return b.String(), nil
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			return b.String(), nil
		}
		end += open

		idx, err := strconv.Atoi(tmpl[open+1 : end])
		if err != nil {
			// not a placeholder, keep the brace
			b.WriteString(tmpl[:open+1])
			tmpl = tmpl[open+1:]
			continue
		}
		if idx < 0 || idx >= len(args) {
			return "", fmt.Errorf("placeholder {%d} with %d argument(s)", idx, len(args))
		}
		b.WriteString(tmpl[:open])
		fmt.Fprint(&b, args[idx])
		tmpl = tmpl[end+1:]
	}
}
