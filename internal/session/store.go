package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloudops-quiz-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects what kind of session Create starts.
type Config struct {
	Mode         domain.Mode
	TargetCount  int
	DomainFilter domain.Domain
}

// Patch carries the fields Update may change. Nil fields are left alone.
// Answers are not patchable; they only grow through AddAnswer.
type Patch struct {
	Mode                 *domain.Mode
	TargetCount          *int
	DomainFilter         *domain.Domain
	CurrentQuestionIndex *int
}

// Store reads and writes the single current-session slot of a volatile store.
// It assumes one writer: callers must not interleave read-modify-write calls.
type Store struct {
	volatile VolatileStore
	key      string
	now      func() time.Time
	newID    func(time.Time) string
	logger   zerolog.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock is useful for deterministic timestamps in tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger.With().Str("component", "session_store").Logger() }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func(time.Time) string) StoreOption {
	return func(s *Store) { s.newID = gen }
}

func NewStore(volatile VolatileStore, opts ...StoreOption) *Store {
	s := &Store{
		volatile: volatile,
		key:      CurrentSessionKey,
		now:      time.Now,
		newID:    NewSessionID,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID combines the start time with a random segment.
func NewSessionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), random)
}

// Now exposes the store clock so collaborators share one notion of time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create replaces whatever session is stored with a fresh one.
func (s *Store) Create(ctx context.Context, cfg Config) (*domain.Session, error) {
	if !cfg.Mode.Valid() {
		return nil, &domain.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
	if cfg.Mode == domain.ModeSet && cfg.TargetCount <= 0 {
		return nil, &domain.ValidationError{Field: "targetCount", Message: "set mode needs a positive target"}
	}
	target := cfg.TargetCount
	if cfg.Mode == domain.ModeEndless {
		target = 0
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:              s.newID(now),
		StartedAt:       now,
		Mode:            cfg.Mode,
		TargetCount:     target,
		DomainFilter:    cfg.DomainFilter,
		Answers:         []domain.Answer{},
		UsedQuestionIDs: []string{},
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info().Str("session_id", session.ID).Str("mode", string(session.Mode)).Msg("session created")
	return session, nil
}

// Get returns the stored session, or nil if there is none. A value that
// cannot be decoded is removed and reported as no session.
func (s *Store) Get(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := s.volatile.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	session, err := decodeSession(raw)
	if err != nil {
		s.logger.Warn().Err(&domain.SessionError{Reason: "corrupt", Err: err}).Msg("removing unreadable session")
		if rmErr := s.volatile.Remove(ctx, s.key); rmErr != nil {
			return nil, fmt.Errorf("remove corrupt session: %w", rmErr)
		}
		return nil, nil
	}
	return session, nil
}

// Save writes session into the slot as is.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	raw, err := encodeSession(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.volatile.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Update applies patch to the stored session. It returns nil when there is no session.
func (s *Store) Update(ctx context.Context, patch Patch) (*domain.Session, error) {
	session, err := s.Get(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if patch.Mode != nil {
		session.Mode = *patch.Mode
	}
	if patch.TargetCount != nil {
		session.TargetCount = *patch.TargetCount
	}
	if patch.DomainFilter != nil {
		session.DomainFilter = *patch.DomainFilter
	}
	if patch.CurrentQuestionIndex != nil {
		session.CurrentQuestionIndex = *patch.CurrentQuestionIndex
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// AddAnswer appends answer and marks its question used. It returns nil when there is no session.
func (s *Store) AddAnswer(ctx context.Context, answer domain.Answer) (*domain.Session, error) {
	session, err := s.Get(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	session.Answers = append(session.Answers, answer)
	session.UsedQuestionIDs = append(session.UsedQuestionIDs, answer.QuestionID)
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) UpdateCurrentQuestionIndex(ctx context.Context, index int) (*domain.Session, error) {
	return s.Update(ctx, Patch{CurrentQuestionIndex: &index})
}

// Clear deletes the slot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.volatile.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
