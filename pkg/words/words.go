// Package words supplies secret words for new games.
package words

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

//go:embed default_words.txt
var embeddedWords string

const (
	// DefaultMinLength is the shortest word Pick prefers.
	DefaultMinLength = 3
	// DefaultAttempts bounds how many draws Pick makes looking for a long enough word.
	DefaultAttempts = 10
)

// ErrEmptyDictionary is returned when a dictionary holds no usable line.
var ErrEmptyDictionary = errors.New("words: dictionary is empty")

// Source draws random words from a loaded dictionary. Safe for concurrent use.
type Source struct {
	words     []string
	minLength int
	attempts  int

	mu  sync.Mutex
	rnd *rand.Rand // nil uses the global generator
}

// Option configures a Source.
type Option func(*Source)

// WithMinLength sets the preferred minimum word length, in runes.
func WithMinLength(n int) Option {
	return func(s *Source) { s.minLength = n }
}

// WithAttempts sets how many draws Pick makes before settling.
func WithAttempts(n int) Option {
	return func(s *Source) { s.attempts = n }
}

// WithRand makes draws deterministic.
func WithRand(r *rand.Rand) Option {
	return func(s *Source) { s.rnd = r }
}

// Load reads a newline-delimited dictionary. An empty path loads the
// embedded French list.
func Load(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return New(strings.Split(embeddedWords, "\n"), opts...)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}

	s, err := New(lines, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// New builds a Source from an in-memory list. Blank entries are dropped.
func New(list []string, opts ...Option) (*Source, error) {
	s := &Source{
		minLength: DefaultMinLength,
		attempts:  DefaultAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.attempts < 1 {
		s.attempts = 1
	}

	for _, w := range list {
		if w = strings.TrimSpace(w); w != "" {
			s.words = append(s.words, w)
		}
	}
	if len(s.words) == 0 {
		return nil, ErrEmptyDictionary
	}
	return s, nil
}

// Len returns the number of dictionary entries.
func (s *Source) Len() int { return len(s.words) }

// Pick returns a lowercased random word. Short words are redrawn until the
// attempt budget runs out, after which the last draw is returned as is.
func (s *Source) Pick() string {
	var w string
	for i := 0; i < s.attempts; i++ {
		w = s.words[s.intN(len(s.words))]
		if utf8.RuneCountInString(w) >= s.minLength {
			break
		}
	}
	return strings.ToLower(w)
}

func (s *Source) intN(n int) int {
	if s.rnd == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}
