package selector

import "cloudops-quiz-engine/internal/domain"

// DifficultyDistribution counts questions per difficulty.
func DifficultyDistribution(qs []domain.Question) map[domain.Difficulty]int {
	out := make(map[domain.Difficulty]int)
	for _, q := range qs {
		out[q.Difficulty]++
	}
	return out
}

// DomainDistribution counts questions per domain.
func DomainDistribution(qs []domain.Question) map[domain.Domain]int {
	out := make(map[domain.Domain]int)
	for _, q := range qs {
		out[q.Domain]++
	}
	return out
}

// CheckDuplicates returns each ID that occurs more than once, in order of its second occurrence.
func CheckDuplicates(ids []string) []string {
	seen := make(map[string]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

// QuestionIDs extracts the IDs of qs.
func QuestionIDs(qs []domain.Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
