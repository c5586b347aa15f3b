package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/selector"
	"cloudops-quiz-engine/internal/session"
	"github.com/rs/zerolog"
)

// PoolSource loads the question pool (HTTP, file, postgres, cached).
type PoolSource interface {
	Load(ctx context.Context) (*bank.Pool, error)
	Reload(ctx context.Context) (*bank.Pool, error)
}

// Recorder receives engine events. metrics.Metrics implements it.
type Recorder interface {
	QuestionServed(d domain.Domain)
	AnswerRecorded(d domain.Domain, correct bool)
	SessionStarted(mode domain.Mode)
	SessionEnded(mode domain.Mode)
	Recovered(state string)
	PoolLoaded(category string)
}

type nopRecorder struct{}

func (nopRecorder) QuestionServed(domain.Domain)       {}
func (nopRecorder) AnswerRecorded(domain.Domain, bool) {}
func (nopRecorder) SessionStarted(domain.Mode)         {}
func (nopRecorder) SessionEnded(domain.Mode)           {}
func (nopRecorder) Recovered(string)                   {}
func (nopRecorder) PoolLoaded(string)                  {}

// AnswerInput is one submission. CorrectAnswer may be left empty to look it
// up in the pool; StartedAt, when set, yields the time spent on the question.
type AnswerInput struct {
	QuestionID    string
	UserAnswer    domain.AnswerValue
	CorrectAnswer domain.AnswerValue
	StartedAt     *time.Time
}

// QuizService drives one quiz tab: it owns the loaded pool and talks to the
// session store and recovery for everything else. Calls are serialized.
type QuizService struct {
	pool     PoolSource
	store    *session.Store
	recovery *session.Recovery
	history  *session.History
	selector *selector.Selector
	selOpts  selector.Options
	recorder Recorder
	logger   zerolog.Logger

	mu     sync.Mutex
	loaded *bank.Pool
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithSelector(sel *selector.Selector) Option {
	return func(s *QuizService) { s.selector = sel }
}

func WithSelectorOptions(opts selector.Options) Option {
	return func(s *QuizService) { s.selOpts = opts }
}

func WithRecorder(r Recorder) Option {
	return func(s *QuizService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *QuizService) { s.logger = logger.With().Str("component", "quiz_service").Logger() }
}

func NewQuizService(pool PoolSource, store *session.Store, recovery *session.Recovery, history *session.History, opts ...Option) *QuizService {
	s := &QuizService{
		pool:     pool,
		store:    store,
		recovery: recovery,
		history:  history,
		recorder: nopRecorder{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = selector.New(nil)
	}
	return s
}

// Init loads the question pool. Failures are returned as *domain.DataError.
func (s *QuizService) Init(ctx context.Context) (*bank.Pool, error) {
	return s.loadPool(ctx, s.pool.Load)
}

// Reload fetches the pool again, bypassing the accessor cache.
func (s *QuizService) Reload(ctx context.Context) (*bank.Pool, error) {
	return s.loadPool(ctx, s.pool.Reload)
}

func (s *QuizService) loadPool(ctx context.Context, load func(context.Context) (*bank.Pool, error)) (*bank.Pool, error) {
	p, err := load(ctx)
	if err != nil {
		category := "server"
		var dataErr *domain.DataError
		if errors.As(err, &dataErr) {
			category = dataErr.Category()
		}
		s.recorder.PoolLoaded(category)
		s.logger.Error().Err(err).Str("category", category).Msg("question pool load failed")
		return nil, err
	}
	s.recorder.PoolLoaded("")

	s.mu.Lock()
	s.loaded = p
	s.mu.Unlock()
	s.logger.Info().Str("source", p.Source()).Int("questions", p.Len()).Msg("question pool loaded")
	return p, nil
}

// Pool returns the loaded pool, or nil before Init succeeds.
func (s *QuizService) Pool() *bank.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Start replaces any current session with a new one.
func (s *QuizService) Start(ctx context.Context, cfg session.Config) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.DomainFilter != "" && !knownDomain(cfg.DomainFilter) {
		return nil, &domain.ValidationError{Field: "domainFilter", Message: fmt.Sprintf("unknown domain %q", cfg.DomainFilter)}
	}
	created, err := s.store.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.backupLocked(ctx, created)
	s.recorder.SessionStarted(created.Mode)
	return created, nil
}

// Resume restores the live session or its backup.
func (s *QuizService) Resume(ctx context.Context) (*domain.Session, session.RecoveryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored, state, err := s.recovery.AttemptRecovery(ctx)
	if err != nil {
		return nil, session.NoSession, err
	}
	s.recorder.Recovered(string(state))
	return restored, state, nil
}

// Current returns the live session, or nil.
func (s *QuizService) Current(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(ctx)
}

// NextQuestion picks an unused question honoring the session's domain filter.
// It returns nil when nothing can be served.
func (s *QuizService) NextQuestion(ctx context.Context) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded == nil {
		return nil, domain.ErrPoolNotLoaded
	}
	live, err := s.liveLocked(ctx)
	if err != nil {
		return nil, err
	}
	q, ok := s.selector.SelectRandom(s.loaded.Questions(), live.UsedQuestionIDs, selector.Filter{Domain: live.DomainFilter}, s.selOpts)
	if !ok {
		s.logger.Info().Str("session_id", live.ID).Msg("no question available")
		return nil, nil
	}
	s.recorder.QuestionServed(q.Domain)
	return &q, nil
}

// RecordAnswer scores a submission and appends it to the live session.
func (s *QuizService) RecordAnswer(ctx context.Context, in AnswerInput) (domain.Answer, *domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.QuestionID == "" {
		return domain.Answer{}, nil, &domain.ValidationError{Field: "questionId", Message: "required"}
	}
	if len(in.UserAnswer) == 0 {
		return domain.Answer{}, nil, &domain.ValidationError{Field: "userAnswer", Message: "required"}
	}

	var (
		q      domain.Question
		inPool bool
	)
	if s.loaded != nil {
		q, inPool = s.loaded.Get(in.QuestionID)
	}
	correct := in.CorrectAnswer
	if len(correct) == 0 {
		if s.loaded == nil {
			return domain.Answer{}, nil, domain.ErrPoolNotLoaded
		}
		if !inPool {
			return domain.Answer{}, nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, in.QuestionID)
		}
		correct = q.CorrectAnswer
	}
	if inPool {
		if err := checkShape(q, in.UserAnswer); err != nil {
			return domain.Answer{}, nil, err
		}
	}

	if _, err := s.liveLocked(ctx); err != nil {
		return domain.Answer{}, nil, err
	}

	now := s.store.Now().UTC()
	answer := domain.Answer{
		QuestionID:    in.QuestionID,
		UserAnswer:    domain.Letters(in.UserAnswer...),
		CorrectAnswer: domain.Letters(correct...),
		IsCorrect:     domain.IsCorrect(in.UserAnswer, correct),
		AnsweredAt:    now,
	}
	if in.StartedAt != nil && now.After(*in.StartedAt) {
		answer.TimeSpent = now.Sub(*in.StartedAt).Truncate(time.Millisecond)
	}

	updated, err := s.store.AddAnswer(ctx, answer)
	if err != nil {
		return domain.Answer{}, nil, err
	}
	if updated == nil {
		return domain.Answer{}, nil, domain.ErrSessionNotFound
	}
	// the answer is stored; a stale index must not make callers submit it again
	if advanced, err := s.store.UpdateCurrentQuestionIndex(ctx, len(updated.Answers)); err != nil {
		s.logger.Warn().Err(err).Str("session_id", updated.ID).Msg("advance question index failed")
	} else if advanced != nil {
		updated = advanced
	}
	s.backupLocked(ctx, updated)
	s.recorder.AnswerRecorded(q.Domain, answer.IsCorrect)
	return answer, updated, nil
}

// Statistics joins the live session's answers against the loaded pool.
func (s *QuizService) Statistics(ctx context.Context) (domain.QuizStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.liveLocked(ctx)
	if err != nil {
		return domain.QuizStatistics{}, err
	}
	return session.CalculateDomainStatistics(live, s.indexLocked()), nil
}

func (s *QuizService) Progress(ctx context.Context) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.liveLocked(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	return session.GetProgress(live), nil
}

// IsComplete is false without a session and always false in endless mode.
func (s *QuizService) IsComplete(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.store.Get(ctx)
	if err != nil {
		return false, err
	}
	return session.IsComplete(live), nil
}

// End writes a history entry for the live session and clears it everywhere.
// It returns nil when there is no session.
func (s *QuizService) End(ctx context.Context) (*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.store.Get(ctx)
	if err != nil || live == nil {
		return nil, err
	}
	now := s.store.Now().UTC()
	entry := domain.HistoryEntry{
		SessionID:   live.ID,
		Mode:        live.Mode,
		StartedAt:   live.StartedAt,
		CompletedAt: now,
		Statistics:  session.CalculateDomainStatistics(live, s.indexLocked()),
		Duration:    session.GetSessionDuration(live, now),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.clearLocked(ctx); err != nil {
		return nil, err
	}
	s.recorder.SessionEnded(live.Mode)
	s.logger.Info().Str("session_id", live.ID).Int("answers", len(live.Answers)).Msg("session ended")
	return &entry, nil
}

// Clear drops the live session and its backup without recording history.
func (s *QuizService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ReviewQuestions returns up to count questions the live session got wrong.
func (s *QuizService) ReviewQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded == nil {
		return nil, domain.ErrPoolNotLoaded
	}
	live, err := s.liveLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.selector.SelectReviewQuestions(s.loaded.Questions(), live, count), nil
}

// QuestionSet builds up to count distinct questions, restricted to the live
// session's domain filter when there is one.
func (s *QuizService) QuestionSet(ctx context.Context, count int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded == nil {
		return nil, domain.ErrPoolNotLoaded
	}
	var filter selector.Filter
	live, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if live != nil {
		filter.Domain = live.DomainFilter
	}
	return s.selector.SelectQuestionSet(s.loaded.Questions(), count, filter, s.selOpts), nil
}

// History lists summaries of ended sessions, newest first.
func (s *QuizService) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	return s.history.List(ctx)
}

// Backup copies the live session to the durable store. It is a no-op without a session.
func (s *QuizService) Backup(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.store.Get(ctx)
	if err != nil || live == nil {
		return false, err
	}
	if err := s.recovery.CreateBackup(ctx, live); err != nil {
		return false, err
	}
	return true, nil
}

func (s *QuizService) liveLocked(ctx context.Context) (*domain.Session, error) {
	live, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if live == nil {
		return nil, domain.ErrSessionNotFound
	}
	return live, nil
}

func (s *QuizService) indexLocked() map[string]domain.Question {
	if s.loaded == nil {
		return nil
	}
	return s.loaded.Index()
}

// backupLocked mirrors a mutation into the durable store. A failed backup
// does not fail the mutation.
func (s *QuizService) backupLocked(ctx context.Context, live *domain.Session) {
	if err := s.recovery.CreateBackup(ctx, live); err != nil {
		s.logger.Warn().Err(err).Str("session_id", live.ID).Msg("session backup failed")
	}
}

func (s *QuizService) clearLocked(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	return s.recovery.ClearBackup(ctx)
}

// checkShape rejects submissions whose letters or cardinality do not fit q.
func checkShape(q domain.Question, user domain.AnswerValue) error {
	letters := user.Set()
	if q.Type == domain.TypeSingle && len(letters) != 1 {
		return &domain.ValidationError{Field: "userAnswer", Message: "single-answer question takes exactly one letter"}
	}
	options := make(domain.AnswerValue, len(q.Options))
	for i := range q.Options {
		options[i] = domain.OptionLetter(i)
	}
	for _, letter := range letters {
		if !options.Contains(letter) {
			return &domain.ValidationError{Field: "userAnswer", Message: fmt.Sprintf("%q is not an option", letter)}
		}
	}
	return nil
}

func knownDomain(d domain.Domain) bool {
	for _, known := range domain.Domains {
		if known == d {
			return true
		}
	}
	return false
}
