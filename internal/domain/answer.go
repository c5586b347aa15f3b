package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AnswerValue is one option letter ("A") or a set of letters (["A","C"]).
// It serializes as a JSON string when it holds exactly one letter.
type AnswerValue []string

// Letters builds an AnswerValue from the given option letters.
func Letters(letters ...string) AnswerValue {
	out := make(AnswerValue, len(letters))
	copy(out, letters)
	return out
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(v))
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = AnswerValue{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings: %w", err)
	}
	if many == nil {
		many = []string{}
	}
	*v = AnswerValue(many)
	return nil
}

// Set returns the distinct letters in sorted order.
func (v AnswerValue) Set() []string {
	seen := make(map[string]struct{}, len(v))
	out := make([]string, 0, len(v))
	for _, letter := range v {
		if _, ok := seen[letter]; ok {
			continue
		}
		seen[letter] = struct{}{}
		out = append(out, letter)
	}
	sort.Strings(out)
	return out
}

func (v AnswerValue) String() string {
	return strings.Join(v, ",")
}

// IsCorrect compares a submission against the correct answer. Single letters
// compare exactly; sets compare ignoring order and duplicates.
func IsCorrect(user, correct AnswerValue) bool {
	if len(user) == 1 && len(correct) == 1 {
		return user[0] == correct[0]
	}
	u, c := user.Set(), correct.Set()
	if len(u) == 0 || len(u) != len(c) {
		return false
	}
	for i := range u {
		if u[i] != c[i] {
			return false
		}
	}
	return true
}

// Contains reports whether letter is part of v.
func (v AnswerValue) Contains(letter string) bool {
	for _, l := range v {
		if l == letter {
			return true
		}
	}
	return false
}

// OptionLetter returns the letter labelling option i ("A" for 0).
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// Validate checks the structural invariants of a bank question.
func (q Question) Validate() error {
	if q.ID == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if q.Type != TypeSingle && q.Type != TypeMultiple {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown type %q", q.Type)}
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return &ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", q.Difficulty)}
	}
	if len(q.Options) < 2 || len(q.Options) > 6 {
		return &ValidationError{Field: "options", Message: fmt.Sprintf("expected 2-6 options, got %d", len(q.Options))}
	}

	valid := make(map[string]struct{}, len(q.Options))
	for i := range q.Options {
		valid[OptionLetter(i)] = struct{}{}
	}
	answers := q.CorrectAnswer.Set()
	for _, letter := range answers {
		if _, ok := valid[letter]; !ok {
			return &ValidationError{Field: "correct_answer", Message: fmt.Sprintf("letter %q is not an option", letter)}
		}
	}

	if q.Type == TypeSingle && len(answers) != 1 {
		return &ValidationError{Field: "correct_answer", Message: "single questions need exactly one answer"}
	}
	if q.Type == TypeMultiple && (len(answers) < 2 || len(answers) >= len(q.Options)) {
		return &ValidationError{Field: "correct_answer", Message: "multiple questions need at least two answers and fewer than the option count"}
	}
	return nil
}
