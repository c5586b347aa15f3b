package bank

import (
	"testing"

	"cloudops-quiz-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditCleanBank(t *testing.T) {
	b := NewBank("1", sampleQuestions())
	assert.Empty(t, Audit(newPoolFromBank("bank", b)))
}

func TestAuditReportsProblems(t *testing.T) {
	qs := sampleQuestions()
	qs = append(qs,
		domain.Question{ID: "q001", Domain: domain.DomainMonitoring, Difficulty: domain.DifficultyEasy, Type: domain.TypeSingle,
			Options: []string{"a", "b"}, CorrectAnswer: domain.Letters("A")},
		domain.Question{ID: "q004", Domain: "databases", Difficulty: domain.DifficultyEasy, Type: domain.TypeMultiple,
			Options: []string{"a", "b", "c"}, CorrectAnswer: domain.Letters("A", "B", "C")},
	)
	b := NewBank("1", sampleQuestions())
	b.Questions = qs

	issues := Audit(newPoolFromBank("bank", b))
	require.NotEmpty(t, issues)

	byQuestion := map[string][]string{}
	var header []string
	for _, issue := range issues {
		if issue.QuestionID == "" {
			header = append(header, issue.Problem)
			continue
		}
		byQuestion[issue.QuestionID] = append(byQuestion[issue.QuestionID], issue.Problem)
	}
	assert.Contains(t, byQuestion["q001"], "duplicate id")
	assert.Len(t, byQuestion["q004"], 2, "invalid answer count and unknown domain")
	assert.Contains(t, header, "header totalQuestions 3, bank has 5")
	assert.Contains(t, header, "header domain monitoring lists 2, bank has 3")
}
