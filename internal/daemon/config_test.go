package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pendu.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PENDU_PRIVATE_CONFIG", "")
	t.Setenv("MATRIX_HOMESERVER", "")

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "pendu", cfg.Name)
	assert.Equal(t, "!", cfg.Prefix)
	assert.Equal(t, "10m", cfg.Game.TurnTimeout)
	assert.Equal(t, "memory", cfg.Slots.Backend)
	assert.False(t, cfg.Matrix.Enabled)
	assert.Equal(t, 50, cfg.Scoreboard.BatchSize)
}

func TestLoadConfigMergesFileOverlayAndProfile(t *testing.T) {
	t.Setenv("PENDU_TEST_PASSWORD", "s3cret")

	path := writeConfig(t, `{
		"prefix": "?",
		"admins": ["@alice:example.org"],
		"matrix": {"enabled": true, "password": "$PENDU_TEST_PASSWORD"},
		"game": {"turn_timeout": "5m"},
		"profiles": {
			"dev": {"game": {"turn_timeout": "30s"}, "console": {"enabled": true}}
		}
	}`)
	overlay := writeConfig(t, `{"error_room": "!errors:example.org"}`)
	t.Setenv("PENDU_PRIVATE_CONFIG", overlay)

	cfg, err := LoadConfig(path, "dev")
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.Prefix)
	assert.Equal(t, []string{"@alice:example.org"}, cfg.Admins)
	assert.Equal(t, "s3cret", cfg.Matrix.Password)
	assert.True(t, cfg.Matrix.Enabled)
	// nested objects merge rather than replace
	assert.NotEmpty(t, cfg.Matrix.Homeserver)
	assert.Equal(t, "30s", cfg.Game.TurnTimeout)
	assert.Equal(t, "50ms", cfg.Game.WatchdogGrace)
	assert.True(t, cfg.Console.Enabled)
	assert.Equal(t, "!errors:example.org", cfg.ErrorRoom)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("PENDU_PRIVATE_CONFIG", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"profiles": {"a": {}}}`), "b")
	assert.ErrorContains(t, err, `unknown profile "b"`)

	_, err = LoadConfig(writeConfig(t, `{"game": {"turn_timeout": "soon"}}`), "")
	assert.ErrorContains(t, err, "game.turn_timeout")

	_, err = LoadConfig(writeConfig(t, `{"slots": {"backend": "etcd"}}`), "")
	assert.ErrorContains(t, err, "slots.backend")
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Minute, duration("", time.Minute))
	assert.Equal(t, time.Duration(0), duration("0", time.Minute))
	assert.Equal(t, 90*time.Second, duration("1m30s", time.Minute))
}

func TestMergeMapReplacesScalars(t *testing.T) {
	dst := map[string]interface{}{
		"a": map[string]interface{}{"x": 1.0, "y": 2.0},
		"b": "keep",
	}
	mergeMap(dst, map[string]interface{}{
		"a": map[string]interface{}{"y": 3.0},
		"c": true,
	})
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"x": 1.0, "y": 3.0},
		"b": "keep",
		"c": true,
	}, dst)
}
