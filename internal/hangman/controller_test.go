package hangman

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cereales/pendu/internal/nls"
	"github.com/cereales/pendu/pkg/channel"
)

func TestLoopVictory(t *testing.T) {
	var log []string
	view := &scriptedView{letters: []rune("orTue"), log: &log}
	closer := CloserFunc(func(id string) { log = append(log, "close "+id) })

	var events []Event
	c := NewController(NewModel("tortue"), view, closer,
		WithWatchdog(testWatchdog),
		WithObserver(func(e Event) { events = append(events, e) }),
	)

	res, err := c.Loop(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Won)
	assert.Equal(t, "tortue", res.Secret)
	assert.Equal(t, 5, res.Turns)
	assert.Equal(t, MaxLives, res.Lives)
	assert.Equal(t, []string{"close room", "victory tortue"}, log, "slot is released before the announcement")

	require.Len(t, events, 5)
	for _, e := range events {
		assert.Equal(t, EventHit, e.Kind)
	}
	assert.Equal(t, "alice", res.Played[0].Player)
}

func TestLoopGameOver(t *testing.T) {
	var log []string
	view := &scriptedView{letters: []rune("bcdfghjklmn"), log: &log}
	closer := CloserFunc(func(id string) { log = append(log, "close "+id) })

	res, err := NewController(NewModel("zoo"), view, closer, WithWatchdog(testWatchdog)).Loop(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Won)
	assert.Equal(t, 0, res.Lives)
	assert.Len(t, res.Misses, MaxLives)
	assert.Equal(t, []string{"close room", "game over zoo"}, log)
}

func TestLoopPreviousTurn(t *testing.T) {
	view := &scriptedView{letters: []rune("xoo")}
	_, err := NewController(NewModel("zoo"), view, nil, WithWatchdog(testWatchdog)).Loop(context.Background())
	require.NoError(t, err)

	require.Len(t, view.states, 2)
	assert.Equal(t, LastTurn{Result: NoTurn}, view.states[0].Last)
	assert.Equal(t, LastTurn{Result: Miss}, view.states[1].Last)
	assert.Equal(t, []rune{'x'}, view.states[1].Misses)
	assert.Equal(t, MaxLives-1, view.states[1].Lives)
}

func TestLoopTimeoutRetriesSameState(t *testing.T) {
	view := &scriptedView{letters: []rune("o"), skip: map[int]bool{0: true}}

	var kinds []EventKind
	c := NewController(NewModel("zoo"), view, nil,
		WithWatchdog(testWatchdog),
		WithTurnTimeout(30*time.Millisecond),
		WithObserver(func(e Event) { kinds = append(kinds, e.Kind) }),
	)
	res, err := c.Loop(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Won)
	assert.Equal(t, 1, res.Timeouts)
	assert.Equal(t, []EventKind{EventTimeout, EventHit}, kinds)

	require.Len(t, view.states, 2)
	assert.Equal(t, view.states[0], view.states[1])
}

func TestLoopViewFailure(t *testing.T) {
	boom := errors.New("network down")
	closed := false
	view := &scriptedView{fail: boom}

	_, err := NewController(NewModel("zoo"), view, CloserFunc(func(string) { closed = true }),
		WithWatchdog(testWatchdog)).Loop(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, closed)
}

func TestLoopCancellation(t *testing.T) {
	closed := false
	view := &scriptedView{skip: map[int]bool{0: true}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := NewController(NewModel("zoo"), view, CloserFunc(func(string) { closed = true }),
		WithWatchdog(testWatchdog)).Loop(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, closed)
}

func TestLoopWithChatView(t *testing.T) {
	out := &recorder{}
	view := NewView("!room", out, nls.MustNew(nls.English), StyleDrawing)

	done := make(chan Result, 1)
	go func() {
		res, err := NewController(NewModel("zoo"), view, nil, WithWatchdog(testWatchdog)).Loop(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, view.Waiting, time.Second, time.Millisecond)
	assert.False(t, view.OnMessage(channel.Message{SenderID: "@bob", Content: "oo"}), "two characters")
	assert.True(t, view.OnMessage(channel.Message{SenderID: "@bob", Content: " o "}))

	select {
	case res := <-done:
		assert.True(t, res.Won)
		assert.Equal(t, "@bob", res.Played[0].Player)
	case <-time.After(2 * time.Second):
		t.Fatal("game did not finish")
	}

	sent := out.contents()
	require.Len(t, sent, 3)
	assert.Equal(t, "```z _ _```", sent[0])
	assert.Equal(t, "```z o o```", sent[1])
	assert.Equal(t, "Winner !", sent[2])
}
