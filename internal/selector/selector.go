// Package selector picks questions from a pool. Selection never fails for lack
// of questions: it returns the best available subset, or nothing, and leaves the
// decision to the caller.
package selector

import (
	"math/rand"
	"time"

	"cloudops-quiz-engine/internal/domain"
)

// DefaultRecentWindow is how many trailing used IDs count as recent.
const DefaultRecentWindow = 5

// Filter restricts the candidate set. Zero fields do not filter.
type Filter struct {
	Domain     domain.Domain
	Difficulty domain.Difficulty
	Type       domain.QuestionType
	// Tags keeps questions carrying at least one of the tags.
	Tags       []string
	ExcludeIDs []string
}

// Match reports whether q passes every set field of f.
func (f Filter) Match(q domain.Question) bool {
	if f.Domain != "" && q.Domain != f.Domain {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Type != "" && q.Type != f.Type {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if q.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, id := range f.ExcludeIDs {
		if q.ID == id {
			return false
		}
	}
	return true
}

// Options tune selection. The zero value means: avoid the last
// DefaultRecentWindow questions, allow reuse once the pool is exhausted,
// and balance domains when building sets.
type Options struct {
	DisableRecencyAvoidance bool
	RecentWindow            int
	PreferDifficulty        domain.Difficulty
	// NoReuse drops the relaxation steps that serve already used questions.
	NoReuse                 bool
	DisableDomainBalance    bool
}

func (o Options) recentWindow() int {
	if o.RecentWindow <= 0 {
		return DefaultRecentWindow
	}
	return o.RecentWindow
}

// Selector holds the random source used for picks and shuffles.
// It is not safe for concurrent use.
type Selector struct {
	rnd *rand.Rand
}

// New returns a Selector drawing from rnd, or from a time-seeded source if rnd is nil.
func New(rnd *rand.Rand) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rnd: rnd}
}

// SelectRandom picks one question uniformly from the first non-empty
// relaxation step. ok is false when every step is empty.
func (s *Selector) SelectRandom(pool []domain.Question, usedIDs []string, filter Filter, opts Options) (domain.Question, bool) {
	q, _, ok := s.selectRandom(pool, usedIDs, filter, opts)
	return q, ok
}

func (s *Selector) selectRandom(pool []domain.Question, usedIDs []string, filter Filter, opts Options) (domain.Question, Step, bool) {
	for _, step := range Ladder(usedIDs, opts) {
		candidates := Candidates(step, pool, usedIDs, filter, opts)
		if len(candidates) == 0 {
			continue
		}
		if opts.PreferDifficulty != "" {
			if preferred := byDifficulty(candidates, opts.PreferDifficulty); len(preferred) > 0 {
				candidates = preferred
			}
		}
		return candidates[s.rnd.Intn(len(candidates))], step, true
	}
	return domain.Question{}, "", false
}

// SelectQuestionSet builds up to count distinct questions. The result is
// shorter than count when the filtered pool runs out.
func (s *Selector) SelectQuestionSet(pool []domain.Question, count int, filter Filter, opts Options) []domain.Question {
	if count <= 0 {
		return nil
	}
	opts.NoReuse = true
	if !opts.DisableDomainBalance && filter.Domain == "" {
		return s.selectBalancedSet(pool, count, filter, opts)
	}

	out := make([]domain.Question, 0, count)
	used := make([]string, 0, count)
	for len(out) < count {
		q, ok := s.SelectRandom(pool, used, filter, opts)
		if !ok {
			break
		}
		out = append(out, q)
		used = append(used, q.ID)
	}
	return out
}

func (s *Selector) selectBalancedSet(pool []domain.Question, count int, filter Filter, opts Options) []domain.Question {
	out := make([]domain.Question, 0, count)
	used := make([]string, 0, count)

	domains := presentDomains(pool, filter)
	if len(domains) == 0 {
		return out
	}
	per, extra := count/len(domains), count%len(domains)
	for i, d := range domains {
		want := per
		if i < extra {
			want++
		}
		restricted := filter
		restricted.Domain = d
		for n := 0; n < want; n++ {
			q, ok := s.SelectRandom(pool, used, restricted, opts)
			if !ok {
				break
			}
			out = append(out, q)
			used = append(used, q.ID)
		}
	}

	// top up from any domain when one ran short
	for len(out) < count {
		q, ok := s.SelectRandom(pool, used, filter, opts)
		if !ok {
			break
		}
		out = append(out, q)
		used = append(used, q.ID)
	}

	s.shuffle(out)
	return out
}

// SelectReviewQuestions returns up to count pool questions the session answered incorrectly, shuffled.
func (s *Selector) SelectReviewQuestions(pool []domain.Question, session *domain.Session, count int) []domain.Question {
	if session == nil || count <= 0 {
		return nil
	}
	incorrect := make(map[string]struct{})
	for _, a := range session.Answers {
		if !a.IsCorrect {
			incorrect[a.QuestionID] = struct{}{}
		}
	}
	var out []domain.Question
	for _, q := range pool {
		if _, ok := incorrect[q.ID]; ok {
			out = append(out, q)
		}
	}
	s.shuffle(out)
	if len(out) > count {
		out = out[:count]
	}
	return out
}

func (s *Selector) shuffle(qs []domain.Question) {
	s.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

// presentDomains lists the domains of the filtered pool, known domains first
// in enumeration order, then any others in pool order.
func presentDomains(pool []domain.Question, filter Filter) []domain.Domain {
	present := make(map[domain.Domain]bool)
	var unknown []domain.Domain
	for _, q := range pool {
		if !filter.Match(q) || present[q.Domain] {
			continue
		}
		present[q.Domain] = true
		if !isKnownDomain(q.Domain) {
			unknown = append(unknown, q.Domain)
		}
	}
	var out []domain.Domain
	for _, d := range domain.Domains {
		if present[d] {
			out = append(out, d)
		}
	}
	return append(out, unknown...)
}

func isKnownDomain(d domain.Domain) bool {
	for _, known := range domain.Domains {
		if d == known {
			return true
		}
	}
	return false
}

func byDifficulty(qs []domain.Question, d domain.Difficulty) []domain.Question {
	var out []domain.Question
	for _, q := range qs {
		if q.Difficulty == d {
			out = append(out, q)
		}
	}
	return out
}
