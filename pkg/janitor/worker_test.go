package janitor

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cereales/pendu/pkg/scoreboard"
)

func TestCleanOncePrunesOldGames(t *testing.T) {
	ctx := context.Background()
	b, err := scoreboard.Open(filepath.Join(t.TempDir(), "pendu.db"))
	require.NoError(t, err)
	defer b.Close()

	now := time.Now()
	for id, finished := range map[string]time.Time{
		"old": now.Add(-100 * 24 * time.Hour),
		"new": now,
	} {
		require.NoError(t, b.RecordGame(ctx, scoreboard.Game{
			ID: id, Room: "r", Mode: scoreboard.ModePlayers, Secret: "zoo", Won: true,
			Turns: 1, StartedAt: finished, FinishedAt: finished,
			Guesses: []scoreboard.Guess{{Turn: 1, Player: "@bob", Letter: "o", Hit: true}},
		}))
	}

	w := NewWorker(b, nil, DefaultConfig())
	report := w.CleanOnce(ctx)

	assert.Equal(t, 1, report.CycleNumber)
	assert.Equal(t, int64(1), report.Pruned)
	assert.Equal(t, 1, report.Stats.Games)
	require.Len(t, report.TopPlayers, 1)
	assert.Equal(t, "@bob", report.TopPlayers[0].Player)
	assert.Empty(t, report.Errors)
	assert.Same(t, report, w.LastReport())
}

type brokenLedger struct {
	mu  sync.Mutex
	kv  map[string]string
	err error
}

func (l *brokenLedger) Stats(context.Context) (scoreboard.Stats, error) {
	return scoreboard.Stats{}, l.err
}

func (l *brokenLedger) Leaderboard(context.Context, int) ([]scoreboard.PlayerScore, error) {
	return nil, nil
}

func (l *brokenLedger) Prune(context.Context, time.Time) (int64, error) { return 0, l.err }

func (l *brokenLedger) KVSet(_ context.Context, k, v string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kv[k] = v
	return nil
}

func TestRunReportsErrorsAndStoresReport(t *testing.T) {
	l := &brokenLedger{kv: map[string]string{}, err: errors.New("disk full")}

	var mu sync.Mutex
	var msgs []string
	w := NewWorker(l, func(typ, msg string) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	}, Config{Interval: time.Hour, Retention: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return w.LastReport() != nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.kv[ReportKey] != ""
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Len(t, w.LastReport().Errors, 2)

	var stored Report
	l.mu.Lock()
	require.NoError(t, json.Unmarshal([]byte(l.kv[ReportKey]), &stored))
	l.mu.Unlock()
	assert.Equal(t, 1, stored.CycleNumber)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, msgs, "Janitor started")
}
