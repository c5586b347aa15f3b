package session

import (
	"math"
	"time"

	"cloudops-quiz-engine/internal/domain"
)

// DefaultExpiry is how long a session stays recoverable after it started.
const DefaultExpiry = 24 * time.Hour

// CalculateStatistics summarizes answers without a pool join; the domain breakdown is empty.
func CalculateStatistics(s *domain.Session) domain.QuizStatistics {
	stats := domain.QuizStatistics{DomainBreakdown: map[domain.Domain]domain.DomainStats{}}
	if s == nil {
		return stats
	}
	var timed int
	var spent time.Duration
	for _, a := range s.Answers {
		stats.TotalQuestions++
		if a.IsCorrect {
			stats.CorrectAnswers++
		}
		if a.TimeSpent > 0 {
			timed++
			spent += a.TimeSpent
		}
	}
	stats.Accuracy = percentage(stats.CorrectAnswers, stats.TotalQuestions)
	if timed > 0 {
		avg := round2(spent.Seconds() / float64(timed))
		stats.AverageTimeSeconds = &avg
	}
	return stats
}

// CalculateDomainStatistics is CalculateStatistics plus a per-domain breakdown
// joined through index. Answers whose question is not in index are skipped in
// the breakdown only.
func CalculateDomainStatistics(s *domain.Session, index map[string]domain.Question) domain.QuizStatistics {
	stats := CalculateStatistics(s)
	if s == nil || len(index) == 0 {
		return stats
	}
	for _, a := range s.Answers {
		q, ok := index[a.QuestionID]
		if !ok {
			continue
		}
		ds := stats.DomainBreakdown[q.Domain]
		ds.Total++
		if a.IsCorrect {
			ds.Correct++
		}
		stats.DomainBreakdown[q.Domain] = ds
	}
	for d, ds := range stats.DomainBreakdown {
		ds.Accuracy = percentage(ds.Correct, ds.Total)
		stats.DomainBreakdown[d] = ds
	}
	return stats
}

// GetProgress reports answered count and, for set mode, completion.
func GetProgress(s *domain.Session) domain.Progress {
	if s == nil {
		return domain.Progress{}
	}
	p := domain.Progress{Current: len(s.Answers)}
	if s.Mode != domain.ModeSet || s.TargetCount <= 0 {
		return p
	}
	total := s.TargetCount
	pct := math.Min(100, math.Round(float64(p.Current)*100/float64(total)))
	p.Total = &total
	p.Percentage = &pct
	p.IsComplete = p.Current >= total
	return p
}

// IsComplete is true only for set sessions that reached their target.
func IsComplete(s *domain.Session) bool {
	return GetProgress(s).IsComplete
}

// GetSessionDuration returns whole seconds elapsed since the session started.
func GetSessionDuration(s *domain.Session, now time.Time) int64 {
	if s == nil {
		return 0
	}
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// ValidateSession checks the structure of a session and that it started
// no more than maxAge before now. A non-positive maxAge disables the age check.
func ValidateSession(s *domain.Session, now time.Time, maxAge time.Duration) bool {
	return validationError(s, now, maxAge) == nil
}

func validationError(s *domain.Session, now time.Time, maxAge time.Duration) *domain.SessionError {
	switch {
	case s == nil:
		return &domain.SessionError{Reason: "invalid"}
	case s.ID == "", s.StartedAt.IsZero(), !s.Mode.Valid():
		return &domain.SessionError{Reason: "invalid"}
	case s.Answers == nil, s.UsedQuestionIDs == nil:
		return &domain.SessionError{Reason: "invalid"}
	case len(s.UsedQuestionIDs) < len(s.Answers), s.CurrentQuestionIndex < 0:
		return &domain.SessionError{Reason: "invalid"}
	case s.Mode == domain.ModeSet && s.TargetCount <= 0:
		return &domain.SessionError{Reason: "invalid"}
	case maxAge > 0 && now.Sub(s.StartedAt) > maxAge:
		return &domain.SessionError{Reason: "expired"}
	}
	return nil
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
