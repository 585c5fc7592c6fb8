package turn

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackReadiness(t *testing.T) {
	cb := NewCallback[string, rune]("t _ _ _")
	assert.Equal(t, "t _ _ _", cb.Inputs())
	assert.False(t, cb.IsReady())

	require.NoError(t, cb.RecordAnswer('e'))
	assert.True(t, cb.Answered())
	assert.False(t, cb.IsReady(), "answer alone must not make the turn ready")

	cb.MarkCallCompleted()
	assert.True(t, cb.CallCompleted())
	assert.True(t, cb.IsReady())

	got, ok := cb.Answer()
	require.True(t, ok)
	assert.Equal(t, 'e', got)
}

func TestCallbackCompletedWithoutAnswer(t *testing.T) {
	cb := NewCallback[int, string](0)
	cb.MarkCallCompleted()
	assert.False(t, cb.IsReady())

	_, ok := cb.Answer()
	assert.False(t, ok)
}

func TestCallbackSecondAnswerRejected(t *testing.T) {
	cb := NewCallback[struct{}, rune](struct{}{})
	require.NoError(t, cb.RecordAnswer('a'))
	assert.ErrorIs(t, cb.RecordAnswer('b'), ErrAlreadyAnswered)

	got, _ := cb.Answer()
	assert.Equal(t, 'a', got)
}

func TestCallbackConcurrentAnswers(t *testing.T) {
	cb := NewCallback[struct{}, int](struct{}{})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if cb.RecordAnswer(n) == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, cb.Answered())
}

func TestPendingTakeConsumes(t *testing.T) {
	var p Pending[Callback[string, rune]]
	assert.False(t, p.IsOpen())
	assert.Nil(t, p.Take())

	cb := NewCallback[string, rune]("x")
	p.Open(cb)
	assert.True(t, p.IsOpen())
	assert.Same(t, cb, p.Take())
	assert.False(t, p.IsOpen())
	assert.Nil(t, p.Take(), "a turn is handed out once")
}

func TestPendingConcurrentTake(t *testing.T) {
	var p Pending[Callback[string, rune]]
	p.Open(NewCallback[string, rune]("x"))

	var got atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Take() != nil {
				got.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), got.Load())
}
