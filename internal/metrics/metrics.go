package metrics

import (
	"cloudops-quiz-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	QuestionsServed *prometheus.CounterVec
	AnswersRecorded *prometheus.CounterVec
	SessionsStarted *prometheus.CounterVec
	SessionsEnded   *prometheus.CounterVec
	Recoveries      *prometheus.CounterVec
	Backups         prometheus.Counter
	PoolLoads       *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		QuestionsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "questions_served_total",
			Help:      "Questions handed out by nextQuestion.",
		}, []string{"domain"}),
		AnswersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "answers_recorded_total",
			Help:      "Answers appended to sessions.",
		}, []string{"domain", "correct"}),
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_started_total",
			Help:      "Sessions created.",
		}, []string{"mode"}),
		SessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_ended_total",
			Help:      "Sessions ended and written to history.",
		}, []string{"mode"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "session_recoveries_total",
			Help:      "Resume attempts by outcome.",
		}, []string{"state"}),
		Backups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "session_backups_total",
			Help:      "Backups written by the periodic worker.",
		}),
		PoolLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "pool_loads_total",
			Help:      "Question pool loads by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.QuestionsServed, m.AnswersRecorded, m.SessionsStarted, m.SessionsEnded, m.Recoveries, m.Backups, m.PoolLoads)
	return m
}

func (m *Metrics) QuestionServed(d domain.Domain) {
	m.QuestionsServed.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) AnswerRecorded(d domain.Domain, correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	m.AnswersRecorded.WithLabelValues(string(d), label).Inc()
}

func (m *Metrics) SessionStarted(mode domain.Mode) {
	m.SessionsStarted.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) SessionEnded(mode domain.Mode) {
	m.SessionsEnded.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) Recovered(state string) {
	m.Recoveries.WithLabelValues(state).Inc()
}

func (m *Metrics) BackupWritten() {
	m.Backups.Inc()
}

// PoolLoaded records a load; category is empty on success.
func (m *Metrics) PoolLoaded(category string) {
	if category == "" {
		category = "ok"
	}
	m.PoolLoads.WithLabelValues(category).Inc()
}
