package bank

import (
	"fmt"
	"sort"

	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/selector"
)

// Issue is one data-quality finding in a bank.
type Issue struct {
	QuestionID string `json:"questionId,omitempty"`
	Problem    string `json:"problem"`
}

// Audit checks every question against its structural invariants, looks for
// duplicate IDs and compares the informational header with the content.
// The loader never runs it; it backs the offline `bank validate` command.
func Audit(p *Pool) []Issue {
	var issues []Issue
	qs := p.Questions()
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			issues = append(issues, Issue{QuestionID: q.ID, Problem: err.Error()})
		}
		known := false
		for _, d := range domain.Domains {
			if q.Domain == d {
				known = true
				break
			}
		}
		if !known {
			issues = append(issues, Issue{QuestionID: q.ID, Problem: fmt.Sprintf("unknown domain %q", q.Domain)})
		}
	}
	for _, id := range selector.CheckDuplicates(selector.QuestionIDs(qs)) {
		issues = append(issues, Issue{QuestionID: id, Problem: "duplicate id"})
	}

	meta := p.Meta()
	if meta.TotalQuestions != 0 && meta.TotalQuestions != len(qs) {
		issues = append(issues, Issue{Problem: fmt.Sprintf("header totalQuestions %d, bank has %d", meta.TotalQuestions, len(qs))})
	}
	if len(meta.Domains) > 0 {
		counted := selector.DomainDistribution(qs)
		names := make([]string, 0, len(meta.Domains))
		for name := range meta.Domains {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if got := counted[domain.Domain(name)]; got != meta.Domains[name] {
				issues = append(issues, Issue{Problem: fmt.Sprintf("header domain %s lists %d, bank has %d", name, meta.Domains[name], got)})
			}
		}
	}
	return issues
}
