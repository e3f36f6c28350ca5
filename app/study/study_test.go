package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   [][]models.Turn
	replies []string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, turns []models.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]models.Turn(nil), turns...))
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return fmt.Sprintf("Good. Next question: Q%d", len(f.calls)), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func newTestController(t *testing.T, gen Generator) (*Controller, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(time.Hour)
	t.Cleanup(store.Close)
	return NewController(store, gen, NewKeyedMutex()), store
}

func TestStartThenAnswer(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{replies: []string{
		"What is photosynthesis?",
		"Not quite, it converts light to chemical energy. Next question: Where does it happen?",
	}}
	c, store := newTestController(t, gen)

	q, err := c.Start(ctx, "s1", "Plants make food from light.")
	require.NoError(t, err)
	assert.Equal(t, "What is photosynthesis?", q)

	reply, err := c.Answer(ctx, "s1", "It is breathing")
	require.NoError(t, err)
	assert.Equal(t, "Not quite, it converts light to chemical energy.", reply.Correction)
	assert.Equal(t, "Where does it happen?", reply.Question)

	require.Len(t, gen.calls, 2)
	assert.Len(t, gen.calls[0], 2)
	require.Len(t, gen.calls[1], 4)
	assert.Equal(t, models.TurnSystem, gen.calls[1][0].Role)
	assert.Equal(t, models.TurnLearner, gen.calls[1][1].Role)
	assert.Equal(t, models.TurnTutor, gen.calls[1][2].Role)
	assert.Equal(t, models.Turn{Role: models.TurnLearner, Content: "It is breathing"}, gen.calls[1][3])

	session, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 5)
	assert.Equal(t, models.TurnTutor, session.Turns[4].Role)
	assert.Equal(t, "Plants make food from light.", session.Context)
}

func TestStartExistingSessionConflicts(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	c, store := newTestController(t, gen)

	_, err := c.Start(ctx, "s1", "cells")
	require.NoError(t, err)
	_, err = c.Start(ctx, "s1", "other material")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, gen.calls, 1)

	session, _ := store.Get(ctx, "s1")
	assert.Equal(t, "cells", session.Context)
}

func TestAnswerUnknownSession(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	c, store := newTestController(t, gen)

	_, err := c.Answer(ctx, "missing", "42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, gen.calls)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartGenerationFailureLeavesNoSession(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: errors.New("upstream 503")}
	c, store := newTestController(t, gen)

	_, err := c.Start(ctx, "s1", "cells")
	assert.ErrorIs(t, err, ErrTransient)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	gen.err = nil
	_, err = c.Start(ctx, "s1", "cells")
	assert.NoError(t, err, "learner can retry after a failed start")
}

func TestAnswerGenerationFailureKeepsHistory(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	c, store := newTestController(t, gen)

	_, err := c.Start(ctx, "s1", "cells")
	require.NoError(t, err)

	gen.err = context.DeadlineExceeded
	_, err = c.Answer(ctx, "s1", "mitochondria")
	assert.ErrorIs(t, err, ErrTransient)

	session, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, session.Turns, 3)
}

func TestEmptyInputRejected(t *testing.T) {
	c, _ := newTestController(t, &fakeGenerator{})
	_, err := c.Start(context.Background(), "", "cells")
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = c.Answer(context.Background(), "s1", "  ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	c, store := newTestController(t, gen)

	_, err := c.Start(ctx, "s1", "cells")
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Answer(ctx, "s1", fmt.Sprintf("answer %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 3+2*n)
	for i := 3; i < len(session.Turns); i += 2 {
		assert.Equal(t, models.TurnLearner, session.Turns[i].Role)
		assert.Equal(t, models.TurnTutor, session.Turns[i+1].Role)
	}
}

func TestSplitReply(t *testing.T) {
	tests := []struct {
		in   string
		want Reply
	}{
		{
			in:   "Correct! Next question: What is DNA?",
			want: Reply{Correction: "Correct!", Question: "What is DNA?"},
		},
		{
			in:   "What is DNA?",
			want: Reply{Question: "What is DNA?"},
		},
		{
			in:   "Close. Next question: A? Next question: B?",
			want: Reply{Correction: "Close.", Question: "A? Next question: B?"},
		},
		{
			in:   "Next question: Why?",
			want: Reply{Question: "Why?"},
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitReply(tt.in), tt.in)
	}
}
