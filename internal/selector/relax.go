package selector

import "cloudops-quiz-engine/internal/domain"

// Step is one rung of the relaxation ladder SelectRandom walks down until a
// step yields candidates.
type Step string

const (
	// StepFresh excludes used questions and the recent window.
	StepFresh  Step = "fresh"
	// StepUnused excludes used questions only.
	StepUnused Step = "unused"
	// StepReuse applies the filter alone, ignoring used questions.
	StepReuse  Step = "reuse"
)

// Ladder returns the steps to try, in order, for the given state and options.
func Ladder(usedIDs []string, opts Options) []Step {
	avoidRecent := !opts.DisableRecencyAvoidance && len(usedIDs) > 0
	steps := make([]Step, 0, 3)
	if avoidRecent {
		steps = append(steps, StepFresh)
	}
	steps = append(steps, StepUnused)
	if opts.NoReuse {
		return steps
	}
	return append(steps, StepReuse)
}

// Candidates returns the pool questions allowed by step. The pool is not modified.
func Candidates(step Step, pool []domain.Question, usedIDs []string, filter Filter, opts Options) []domain.Question {
	var used, recent map[string]struct{}
	switch step {
	case StepFresh:
		used = idSet(usedIDs)
		recent = idSet(recentIDs(usedIDs, opts.recentWindow()))
	case StepUnused:
		used = idSet(usedIDs)
	}

	var out []domain.Question
	for _, q := range pool {
		if !filter.Match(q) {
			continue
		}
		if _, ok := used[q.ID]; ok {
			continue
		}
		if _, ok := recent[q.ID]; ok {
			continue
		}
		out = append(out, q)
	}
	return out
}

func recentIDs(usedIDs []string, window int) []string {
	if len(usedIDs) <= window {
		return usedIDs
	}
	return usedIDs[len(usedIDs)-window:]
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
