package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := NewBus(10)
	ch1, done1 := b.Subscribe()
	ch2, done2 := b.Subscribe()
	defer b.Unsubscribe(done2)
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(Event{Type: Turn, Room: "!r", Letter: "e"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, "e", e.Letter)
			assert.NotEmpty(t, e.TS)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	b.Unsubscribe(done1)
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(0)
	_, done := b.Subscribe()
	defer b.Unsubscribe(done)

	for i := 0; i < 500; i++ {
		b.Publish(Event{Type: Status})
	}
	assert.Len(t, b.Recent(0), 200)
}

func TestRecentKeepsTail(t *testing.T) {
	b := NewBus(3)
	for _, l := range []string{"a", "b", "c", "d"} {
		b.Publish(Event{Type: Turn, Letter: l})
	}
	got := b.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Letter)
	assert.Equal(t, "d", got[1].Letter)
	assert.Len(t, b.Recent(10), 3)
}

func TestMarshalOmitsEmpty(t *testing.T) {
	hit := true
	var m map[string]any
	require.NoError(t, json.Unmarshal(Event{Type: Turn, Hit: &hit}.Marshal(), &m))
	assert.Equal(t, true, m["hit"])
	assert.NotContains(t, m, "room")
	assert.Contains(t, m, "ts")
}
