package session

import (
	"encoding/json"
	"fmt"
	"time"

	"cloudops-quiz-engine/internal/domain"
)

// The stored form keeps every timestamp as an RFC 3339 string so that reading
// a session back never depends on implicit time formatting.

type sessionRecord struct {
	ID                   string         `json:"id"`
	StartedAt            string         `json:"startedAt"`
	Mode                 domain.Mode    `json:"mode"`
	TargetCount          int            `json:"targetCount,omitempty"`
	DomainFilter         domain.Domain  `json:"domainFilter,omitempty"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	Answers              []answerRecord `json:"answers"`
	UsedQuestionIDs      []string       `json:"usedQuestionIds"`
}

type answerRecord struct {
	QuestionID    string             `json:"questionId"`
	UserAnswer    domain.AnswerValue `json:"userAnswer"`
	CorrectAnswer domain.AnswerValue `json:"correctAnswer"`
	IsCorrect     bool               `json:"isCorrect"`
	Timestamp     string             `json:"timestamp"`
	TimeSpentMs   int64              `json:"timeSpent,omitempty"`
}

type historyRecord struct {
	SessionID   string                `json:"sessionId"`
	Mode        domain.Mode           `json:"mode"`
	StartedAt   string                `json:"startedAt"`
	CompletedAt string                `json:"completedAt"`
	Statistics  domain.QuizStatistics `json:"statistics"`
	Duration    int64                 `json:"duration"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func encodeSession(s *domain.Session) (string, error) {
	rec := sessionRecord{
		ID:                   s.ID,
		StartedAt:            formatTime(s.StartedAt),
		Mode:                 s.Mode,
		TargetCount:          s.TargetCount,
		DomainFilter:         s.DomainFilter,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Answers:              make([]answerRecord, len(s.Answers)),
		UsedQuestionIDs:      append([]string{}, s.UsedQuestionIDs...),
	}
	for i, a := range s.Answers {
		rec.Answers[i] = answerRecord{
			QuestionID:    a.QuestionID,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: a.CorrectAnswer,
			IsCorrect:     a.IsCorrect,
			Timestamp:     formatTime(a.AnsweredAt),
			TimeSpentMs:   a.TimeSpent.Milliseconds(),
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeSession parses a stored session. Missing lists and unparsable
// timestamps are reported as errors; structural validity is checked separately.
func decodeSession(raw string) (*domain.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	if rec.Answers == nil || rec.UsedQuestionIDs == nil {
		return nil, fmt.Errorf("session %q is missing answer lists", rec.ID)
	}
	startedAt, err := parseTime(rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("startedAt: %w", err)
	}
	s := &domain.Session{
		ID:                   rec.ID,
		StartedAt:            startedAt,
		Mode:                 rec.Mode,
		TargetCount:          rec.TargetCount,
		DomainFilter:         rec.DomainFilter,
		CurrentQuestionIndex: rec.CurrentQuestionIndex,
		Answers:              make([]domain.Answer, len(rec.Answers)),
		UsedQuestionIDs:      rec.UsedQuestionIDs,
	}
	for i, a := range rec.Answers {
		answeredAt, err := parseTime(a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("answer %d timestamp: %w", i, err)
		}
		s.Answers[i] = domain.Answer{
			QuestionID:    a.QuestionID,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: a.CorrectAnswer,
			IsCorrect:     a.IsCorrect,
			AnsweredAt:    answeredAt,
			TimeSpent:     time.Duration(a.TimeSpentMs) * time.Millisecond,
		}
	}
	return s, nil
}

func encodeHistory(entries []domain.HistoryEntry) (string, error) {
	recs := make([]historyRecord, len(entries))
	for i, e := range entries {
		recs[i] = historyRecord{
			SessionID:   e.SessionID,
			Mode:        e.Mode,
			StartedAt:   formatTime(e.StartedAt),
			CompletedAt: formatTime(e.CompletedAt),
			Statistics:  e.Statistics,
			Duration:    e.Duration,
		}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHistory(raw string) ([]domain.HistoryEntry, error) {
	var recs []historyRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		started, err := parseTime(r.StartedAt)
		if err != nil {
			return nil, err
		}
		completed, err := parseTime(r.CompletedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.HistoryEntry{
			SessionID:   r.SessionID,
			Mode:        r.Mode,
			StartedAt:   started,
			CompletedAt: completed,
			Statistics:  r.Statistics,
			Duration:    r.Duration,
		})
	}
	return out, nil
}
