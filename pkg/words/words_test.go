package words

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Greater(t, s.Len(), 50)

	for i := 0; i < 100; i++ {
		w := s.Pick()
		assert.GreaterOrEqual(t, utf8.RuneCountInString(w), DefaultMinLength, w)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Tortue \n\nGIRAFE\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"tortue", "girafe"}, s.Pick())
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n \n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyDictionary)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestPickRedrawsShortWords(t *testing.T) {
	s, err := New([]string{"a", "ab", "LAPIN"}, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	hits := 0
	for i := 0; i < 200; i++ {
		if s.Pick() == "lapin" {
			hits++
		}
	}
	// Ten draws miss the only long word with probability (2/3)^10.
	assert.Greater(t, hits, 180)
}

func TestPickSettlesAfterAttempts(t *testing.T) {
	s, err := New([]string{"Ab"}, WithAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, "ab", s.Pick())
}

func TestPickDeterministic(t *testing.T) {
	list := []string{"pomme", "poire", "prune", "peche"}
	a, _ := New(list, WithRand(rand.New(rand.NewPCG(7, 7))))
	b, _ := New(list, WithRand(rand.New(rand.NewPCG(7, 7))))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Pick(), b.Pick())
	}
}
