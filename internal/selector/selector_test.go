package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"cloudops-quiz-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSelector() *Selector {
	return New(rand.New(rand.NewSource(42)))
}

// makePool builds perDomain questions for each listed domain, cycling difficulties.
func makePool(perDomain int, domains ...domain.Domain) []domain.Question {
	difficulties := []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	var pool []domain.Question
	for _, d := range domains {
		for i := 0; i < perDomain; i++ {
			pool = append(pool, domain.Question{
				ID:            fmt.Sprintf("%s-%02d", d, i),
				Domain:        d,
				Difficulty:    difficulties[i%len(difficulties)],
				Type:          domain.TypeSingle,
				Options:       []string{"a", "b", "c", "d"},
				CorrectAnswer: domain.Letters("A"),
			})
		}
	}
	return pool
}

func TestSelectRandomNeverRepeatsBeforeExhaustion(t *testing.T) {
	s := newTestSelector()
	pool := makePool(4, domain.Domains...)

	var used []string
	seen := map[string]bool{}
	for i := 0; i < len(pool); i++ {
		q, ok := s.SelectRandom(pool, used, Filter{}, Options{})
		require.True(t, ok)
		require.False(t, seen[q.ID], "repeated %s at turn %d", q.ID, i)
		seen[q.ID] = true
		used = append(used, q.ID)
	}
	assert.Len(t, seen, len(pool))
}

func TestSelectRandomFallsBackToReuse(t *testing.T) {
	s := newTestSelector()
	pool := makePool(8, domain.DomainMonitoring)
	used := QuestionIDs(pool)

	q, step, ok := s.selectRandom(pool, used, Filter{}, Options{})
	require.True(t, ok)
	assert.Equal(t, StepReuse, step)
	assert.Contains(t, used, q.ID)

	// reuse ignores the used list entirely, recent questions included
	recent := map[string]bool{}
	for _, id := range used[len(used)-DefaultRecentWindow:] {
		recent[id] = true
	}
	hits := 0
	for i := 0; i < 400; i++ {
		q, ok := s.SelectRandom(pool, used, Filter{}, Options{})
		require.True(t, ok)
		if recent[q.ID] {
			hits++
		}
	}
	assert.Greater(t, hits, 150, "recent questions must be reachable on reuse")

	_, ok = s.SelectRandom(pool, used, Filter{}, Options{NoReuse: true})
	assert.False(t, ok)

	_, ok = s.SelectRandom(pool, nil, Filter{Domain: domain.DomainNetworking}, Options{})
	assert.False(t, ok, "filter with no matches yields nothing")
}

func TestSelectRandomRecencyIsBestEffort(t *testing.T) {
	s := newTestSelector()
	pool := makePool(3, domain.DomainSecurity)
	used := QuestionIDs(pool)

	// every question is both used and recent: only the bare reuse step has candidates
	q, step, ok := s.selectRandom(pool, used, Filter{}, Options{})
	require.True(t, ok)
	assert.Equal(t, StepReuse, step)
	assert.Contains(t, used, q.ID)
}

func TestSelectRandomPrefersDifficulty(t *testing.T) {
	s := newTestSelector()
	pool := makePool(6, domain.DomainDeployment)
	for i := 0; i < 20; i++ {
		q, ok := s.SelectRandom(pool, nil, Filter{}, Options{PreferDifficulty: domain.DifficultyHard})
		require.True(t, ok)
		assert.Equal(t, domain.DifficultyHard, q.Difficulty)
	}

	easyOnly := makePool(1, domain.DomainDeployment)
	q, ok := s.SelectRandom(easyOnly, nil, Filter{}, Options{PreferDifficulty: domain.DifficultyHard})
	require.True(t, ok)
	assert.Equal(t, domain.DifficultyEasy, q.Difficulty, "preference is dropped when nothing matches")
}

func TestSelectRandomFilter(t *testing.T) {
	s := newTestSelector()
	pool := makePool(3, domain.DomainMonitoring, domain.DomainSecurity)
	pool[0].Tags = []string{"cloudwatch"}

	q, ok := s.SelectRandom(pool, nil, Filter{Tags: []string{"cloudwatch"}}, Options{})
	require.True(t, ok)
	assert.Equal(t, pool[0].ID, q.ID)

	exclude := QuestionIDs(pool)[1:]
	q, ok = s.SelectRandom(pool, nil, Filter{ExcludeIDs: exclude}, Options{})
	require.True(t, ok)
	assert.Equal(t, pool[0].ID, q.ID)
}

func TestLadder(t *testing.T) {
	assert.Equal(t, []Step{StepUnused, StepReuse}, Ladder(nil, Options{}))
	assert.Equal(t, []Step{StepFresh, StepUnused, StepReuse}, Ladder([]string{"a"}, Options{}))
	assert.Equal(t, []Step{StepUnused, StepReuse}, Ladder([]string{"a"}, Options{DisableRecencyAvoidance: true}))
	assert.Equal(t, []Step{StepFresh, StepUnused}, Ladder([]string{"a"}, Options{NoReuse: true}))
}

func TestCandidatesPerStep(t *testing.T) {
	pool := makePool(10, domain.DomainMonitoring)
	used := QuestionIDs(pool)[:7]
	opts := Options{RecentWindow: 3}

	assert.Len(t, Candidates(StepFresh, pool, used, Filter{}, opts), 3)
	assert.Len(t, Candidates(StepUnused, pool, used, Filter{}, opts), 3)
	assert.Len(t, Candidates(StepReuse, pool, used, Filter{}, opts), 10)
	assert.Len(t, pool, 10, "pool untouched")
}

func TestSelectQuestionSetBalanced(t *testing.T) {
	s := newTestSelector()
	pool := makePool(10, domain.Domains...)

	for _, count := range []int{5, 7, 12, 23} {
		set := s.SelectQuestionSet(pool, count, Filter{}, Options{})
		require.Len(t, set, count)
		assert.Empty(t, CheckDuplicates(QuestionIDs(set)))

		dist := DomainDistribution(set)
		base := count / len(domain.Domains)
		for _, d := range domain.Domains {
			assert.InDelta(t, base, dist[d], 1, "count=%d domain=%s", count, d)
		}
	}
}

func TestSelectQuestionSetRemainderGoesToFirstDomains(t *testing.T) {
	s := newTestSelector()
	pool := makePool(10, domain.Domains...)

	dist := DomainDistribution(s.SelectQuestionSet(pool, 7, Filter{}, Options{}))
	assert.Equal(t, 2, dist[domain.DomainMonitoring])
	assert.Equal(t, 2, dist[domain.DomainReliability])
	assert.Equal(t, 1, dist[domain.DomainDeployment])
	assert.Equal(t, 1, dist[domain.DomainSecurity])
	assert.Equal(t, 1, dist[domain.DomainNetworking])
}

func TestSelectQuestionSetTopsUpShortDomains(t *testing.T) {
	s := newTestSelector()
	pool := append(makePool(1, domain.DomainMonitoring), makePool(10, domain.DomainSecurity)...)

	set := s.SelectQuestionSet(pool, 6, Filter{}, Options{})
	require.Len(t, set, 6)
	dist := DomainDistribution(set)
	assert.Equal(t, 1, dist[domain.DomainMonitoring])
	assert.Equal(t, 5, dist[domain.DomainSecurity])
}

func TestSelectQuestionSetUnderfills(t *testing.T) {
	s := newTestSelector()
	pool := makePool(2, domain.DomainMonitoring)

	assert.Len(t, s.SelectQuestionSet(pool, 5, Filter{}, Options{}), 2)
	assert.Len(t, s.SelectQuestionSet(pool, 5, Filter{Domain: domain.DomainMonitoring}, Options{}), 2)
	assert.Empty(t, s.SelectQuestionSet(pool, 5, Filter{Domain: domain.DomainNetworking}, Options{}))
	assert.Nil(t, s.SelectQuestionSet(pool, 0, Filter{}, Options{}))
}

func TestSelectReviewQuestions(t *testing.T) {
	s := newTestSelector()
	pool := makePool(5, domain.DomainReliability)
	session := &domain.Session{Answers: []domain.Answer{
		{QuestionID: pool[0].ID, IsCorrect: false},
		{QuestionID: pool[1].ID, IsCorrect: true},
		{QuestionID: pool[2].ID, IsCorrect: false},
		{QuestionID: pool[3].ID, IsCorrect: false},
	}}

	review := s.SelectReviewQuestions(pool, session, 10)
	assert.ElementsMatch(t, []string{pool[0].ID, pool[2].ID, pool[3].ID}, QuestionIDs(review))
	assert.Len(t, s.SelectReviewQuestions(pool, session, 2), 2)
	assert.Empty(t, s.SelectReviewQuestions(pool, &domain.Session{}, 3))
}

func TestDistributionsAndDuplicates(t *testing.T) {
	pool := makePool(3, domain.DomainMonitoring, domain.DomainNetworking)

	assert.Equal(t, map[domain.Difficulty]int{
		domain.DifficultyEasy: 2, domain.DifficultyMedium: 2, domain.DifficultyHard: 2,
	}, DifficultyDistribution(pool))
	assert.Equal(t, map[domain.Domain]int{domain.DomainMonitoring: 3, domain.DomainNetworking: 3}, DomainDistribution(pool))

	assert.Equal(t, []string{"b", "a"}, CheckDuplicates([]string{"a", "b", "b", "c", "a", "a"}))
	assert.Empty(t, CheckDuplicates([]string{"a", "b"}))
}
