package domain

import "time"

// Domain is a top-level exam category a question belongs to.
type Domain string

const (
	DomainMonitoring  Domain = "monitoring"
	DomainReliability Domain = "reliability"
	DomainDeployment  Domain = "deployment"
	DomainSecurity    Domain = "security"
	DomainNetworking  Domain = "networking"
)

// Domains lists the known domains in enumeration order.
var Domains = []Domain{DomainMonitoring, DomainReliability, DomainDeployment, DomainSecurity, DomainNetworking}

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType is the response type of a question.
type QuestionType string

const (
	TypeSingle   QuestionType = "single"
	TypeMultiple QuestionType = "multiple"
)

// Mode selects how a session ends.
type Mode string

const (
	// ModeSet sessions stop after a fixed number of questions.
	ModeSet Mode = "set"
	// ModeEndless sessions run until the user ends them.
	ModeEndless Mode = "endless"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSet || m == ModeEndless
}

// LearningResource points at reference material explaining a question.
type LearningResource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Question is an immutable record from the question bank.
type Question struct {
	ID                string             `json:"id"`
	Domain            Domain             `json:"domain"`
	Difficulty        Difficulty         `json:"difficulty"`
	Type              QuestionType       `json:"type"`
	Prompt            string             `json:"question"`
	Options           []string           `json:"options"`
	CorrectAnswer     AnswerValue        `json:"correct_answer"`
	Explanation       string             `json:"explanation"`
	LearningResources []LearningResource `json:"learning_resources"`
	RelatedServices   []string           `json:"related_services"`
	Tags              []string           `json:"tags"`
	Scenario          string             `json:"scenario,omitempty"`
}

// HasTag reports whether the question carries tag.
func (q Question) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Bank is the document the question pool is published as.
type Bank struct {
	Version        string         `json:"version"`
	GeneratedAt    string         `json:"generatedAt"`
	TotalQuestions int            `json:"totalQuestions"`
	Domains        map[string]int `json:"domains"`
	Questions      []Question     `json:"questions"`
}

// Answer is one submission recorded in a session. It is never mutated once appended.
type Answer struct {
	QuestionID    string
	UserAnswer    AnswerValue
	CorrectAnswer AnswerValue
	IsCorrect     bool
	AnsweredAt    time.Time
	// TimeSpent is zero when the caller did not report a start time.
	TimeSpent time.Duration
}

// Session is the mutable record of one quiz attempt.
//
// UsedQuestionIDs grows only together with Answers, so
// len(UsedQuestionIDs) == len(Answers) for every session the store writes.
type Session struct {
	ID                   string
	StartedAt            time.Time
	Mode                 Mode
	TargetCount          int
	DomainFilter         Domain
	CurrentQuestionIndex int
	Answers              []Answer
	UsedQuestionIDs      []string
}

// DomainStats is the per-domain slice of QuizStatistics.
type DomainStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// QuizStatistics is derived from a session's answers on demand.
type QuizStatistics struct {
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	Accuracy       float64 `json:"accuracy"`
	// AverageTimeSeconds is nil when no answer carries a duration.
	AverageTimeSeconds *float64               `json:"averageTime,omitempty"`
	DomainBreakdown    map[Domain]DomainStats `json:"domainBreakdown"`
}

// Progress reports how far a session has advanced.
type Progress struct {
	Current    int      `json:"current"`
	Total      *int     `json:"total"`
	Percentage *float64 `json:"percentage"`
	IsComplete bool     `json:"isComplete"`
}

// HistoryEntry summarizes an ended session.
type HistoryEntry struct {
	SessionID   string         `json:"sessionId"`
	Mode        Mode           `json:"mode"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	Statistics  QuizStatistics `json:"statistics"`
	// Duration is in whole seconds.
	Duration int64 `json:"duration"`
}
