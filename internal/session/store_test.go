package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock for deterministic timestamps.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC)}
}

func newTestStore(clock *testClock) (*Store, *memory.KVStore) {
	kv := memory.NewKVStore()
	return NewStore(kv, WithClock(clock.Now)), kv
}

func answer(id string, correct bool, at time.Time) domain.Answer {
	return domain.Answer{
		QuestionID:    id,
		UserAnswer:    domain.Letters("A"),
		CorrectAnswer: domain.Letters("A"),
		IsCorrect:     correct,
		AnsweredAt:    at,
	}
}

func TestCreateOverwritesAndPersists(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store, _ := newTestStore(clock)

	first, err := store.Create(ctx, Config{Mode: domain.ModeSet, TargetCount: 10})
	require.NoError(t, err)
	assert.Regexp(t, `^session_\d+_[0-9a-f]{9}$`, first.ID)
	assert.Empty(t, first.Answers)
	assert.Equal(t, 0, first.CurrentQuestionIndex)

	second, err := store.Create(ctx, Config{Mode: domain.ModeEndless, TargetCount: 7, DomainFilter: domain.DomainSecurity})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, second.TargetCount, "endless sessions carry no target")

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestCreateRejectsBadConfig(t *testing.T) {
	store, _ := newTestStore(newClock())
	var verr *domain.ValidationError

	_, err := store.Create(context.Background(), Config{Mode: "sprint"})
	require.True(t, errors.As(err, &verr))
	_, err = store.Create(context.Background(), Config{Mode: domain.ModeSet})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "targetCount", verr.Field)
}

func TestGetWithoutSession(t *testing.T) {
	store, _ := newTestStore(newClock())
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRemovesCorruptSession(t *testing.T) {
	ctx := context.Background()
	store, kv := newTestStore(newClock())

	for _, raw := range []string{`{not json`, `{"id":"x","startedAt":"yesterday","answers":[],"usedQuestionIds":[]}`, `{"id":"x"}`} {
		require.NoError(t, kv.Set(ctx, CurrentSessionKey, raw))

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
		_, ok, _ := kv.Get(ctx, CurrentSessionKey)
		assert.False(t, ok, "corrupt value %q should be removed", raw)
	}
}

func TestAddAnswerKeepsUsedIDsInLockstep(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store, _ := newTestStore(clock)
	_, err := store.Create(ctx, Config{Mode: domain.ModeEndless})
	require.NoError(t, err)

	for _, id := range []string{"q1", "q2", "q3"} {
		clock.Advance(time.Second)
		s, err := store.AddAnswer(ctx, answer(id, true, clock.Now()))
		require.NoError(t, err)
		require.Len(t, s.UsedQuestionIDs, len(s.Answers))
	}

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2", "q3"}, got.UsedQuestionIDs)
	for i, a := range got.Answers {
		assert.Equal(t, got.UsedQuestionIDs[i], a.QuestionID)
	}
}

func TestUpdateWithoutSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	store, kv := newTestStore(newClock())

	s, err := store.UpdateCurrentQuestionIndex(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, s)
	s, err = store.AddAnswer(ctx, answer("q1", true, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, s)
	_, ok, _ := kv.Get(ctx, CurrentSessionKey)
	assert.False(t, ok)
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(newClock())
	created, err := store.Create(ctx, Config{Mode: domain.ModeSet, TargetCount: 5})
	require.NoError(t, err)

	filter := domain.DomainNetworking
	updated, err := store.Update(ctx, Patch{DomainFilter: &filter})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 5, updated.TargetCount)
	assert.Equal(t, domain.DomainNetworking, updated.DomainFilter)

	updated, err = store.UpdateCurrentQuestionIndex(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentQuestionIndex)
	assert.Equal(t, domain.DomainNetworking, updated.DomainFilter)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(newClock())
	_, err := store.Create(ctx, Config{Mode: domain.ModeEndless})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewSessionIDIsUnique(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewSessionID(now)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestCreateUsesIDGenerator(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	var stamps []time.Time
	store := NewStore(memory.NewKVStore(), WithClock(clock.Now), WithIDGenerator(func(now time.Time) string {
		stamps = append(stamps, now)
		return "session_fixed"
	}))

	s, err := store.Create(ctx, Config{Mode: domain.ModeEndless})
	require.NoError(t, err)
	assert.Equal(t, "session_fixed", s.ID)
	require.Len(t, stamps, 1)
	assert.True(t, stamps[0].Equal(clock.Now()))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session_fixed", got.ID)
}
