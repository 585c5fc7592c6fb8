package nls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnglish(t *testing.T) {
	c := MustNew(English)
	assert.Equal(t, "Hello bob", c.Get(Hello, "bob"))
	assert.Equal(t, "3 errors/11", c.Get(PenduErrors, 3, 11))
	assert.Equal(t, "Game Over... The correct word was tortue.", c.Get(PenduLose, "tortue"))
	assert.Equal(t, "Winner !", c.Get(PenduWin))
}

func TestGetFrench(t *testing.T) {
	c := MustNew(French)
	assert.Equal(t, "Bonjour bob", c.Get(Hello, "bob"))
	assert.Equal(t, "Erreurs", c.Get(Errors))
	assert.Equal(t, "Perdu... Le mot à trouver était tortue.", c.Get(PenduLose, "tortue"))
	assert.Equal(t, "Gagné !", c.Get(PenduWin))
}

func TestMissingArgumentFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "Default", MustNew(English).Get(Hello))
	assert.Equal(t, "ValeurDefaut", MustNew(French).Get(PenduErrors, 1))
}

func TestUnknownKeyFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "Default", MustNew(English).Get(Key("NOPE")))
}

func TestExtraArgumentsIgnored(t *testing.T) {
	assert.Equal(t, "Winner !", MustNew(English).Get(PenduWin, "unused"))
}

func TestParse(t *testing.T) {
	l, err := Parse("fr")
	require.NoError(t, err)
	assert.Equal(t, French, l)

	_, err = Parse("FR")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = New("de")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []Lang{English, French}, Supported())
}

func TestFormatKeepsNonPlaceholderBraces(t *testing.T) {
	out, err := format("{x} {0}", []any{"a"})
	require.NoError(t, err)
	assert.Equal(t, "{x} a", out)
}
