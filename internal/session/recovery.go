package session

import (
	"context"
	"fmt"
	"time"

	"cloudops-quiz-engine/internal/domain"
	"github.com/rs/zerolog"
)

// RecoveryState says where AttemptRecovery found a session.
type RecoveryState string

const (
	RecoveredPrimary RecoveryState = "recovered_primary"
	RecoveredBackup  RecoveryState = "recovered_backup"
	NoSession        RecoveryState = "no_session"
)

// Recovery mirrors the live session into a durable store and restores it
// when the volatile copy is gone or unusable.
type Recovery struct {
	store   *Store
	durable DurableStore
	expiry  time.Duration
	logger  zerolog.Logger
}

// RecoveryOption customizes a Recovery.
type RecoveryOption func(*Recovery)

// WithExpiry overrides DefaultExpiry.
func WithExpiry(d time.Duration) RecoveryOption {
	return func(r *Recovery) {
		if d > 0 {
			r.expiry = d
		}
	}
}

func WithRecoveryLogger(logger zerolog.Logger) RecoveryOption {
	return func(r *Recovery) { r.logger = logger.With().Str("component", "session_recovery").Logger() }
}

func NewRecovery(store *Store, durable DurableStore, opts ...RecoveryOption) *Recovery {
	r := &Recovery{
		store:   store,
		durable: durable,
		expiry:  DefaultExpiry,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate applies ValidateSession with the store clock and the recovery expiry.
func (r *Recovery) Validate(s *domain.Session) bool {
	return ValidateSession(s, r.store.Now(), r.expiry)
}

// CreateBackup writes session and the backup time to the durable store.
func (r *Recovery) CreateBackup(ctx context.Context, s *domain.Session) error {
	if s == nil {
		return nil
	}
	raw, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := r.durable.Set(ctx, BackupKey, raw); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := r.durable.Set(ctx, BackupTimeKey, formatTime(r.store.Now())); err != nil {
		return fmt.Errorf("write backup time: %w", err)
	}
	return nil
}

// LastBackupAt returns when the last backup was written.
func (r *Recovery) LastBackupAt(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := r.durable.Get(ctx, BackupTimeKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// AttemptRecovery returns the live session if it is still usable, otherwise a
// usable backup restored into the volatile store, otherwise nothing (after
// clearing both copies).
func (r *Recovery) AttemptRecovery(ctx context.Context) (*domain.Session, RecoveryState, error) {
	primary, err := r.store.Get(ctx)
	if err != nil {
		return nil, NoSession, err
	}
	if primary != nil {
		verr := validationError(primary, r.store.Now(), r.expiry)
		if verr == nil {
			if err := r.CreateBackup(ctx, primary); err != nil {
				return nil, NoSession, err
			}
			return primary, RecoveredPrimary, nil
		}
		r.logger.Warn().Err(verr).Str("session_id", primary.ID).Msg("discarding live session")
	}

	backup, err := r.readBackup(ctx)
	if err != nil {
		return nil, NoSession, err
	}
	if backup != nil {
		verr := validationError(backup, r.store.Now(), r.expiry)
		if verr == nil {
			if err := r.store.Save(ctx, backup); err != nil {
				return nil, NoSession, err
			}
			r.logger.Info().Str("session_id", backup.ID).Msg("session restored from backup")
			return backup, RecoveredBackup, nil
		}
		r.logger.Warn().Err(verr).Str("session_id", backup.ID).Msg("discarding backup session")
	}

	if err := r.store.Clear(ctx); err != nil {
		return nil, NoSession, err
	}
	if err := r.ClearBackup(ctx); err != nil {
		return nil, NoSession, err
	}
	return nil, NoSession, nil
}

// ClearBackup removes the backup and its timestamp.
func (r *Recovery) ClearBackup(ctx context.Context) error {
	if err := r.durable.Remove(ctx, BackupKey); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	if err := r.durable.Remove(ctx, BackupTimeKey); err != nil {
		return fmt.Errorf("clear backup time: %w", err)
	}
	return nil
}

func (r *Recovery) readBackup(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := r.durable.Get(ctx, BackupKey)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !ok {
		return nil, nil
	}
	s, err := decodeSession(raw)
	if err != nil {
		r.logger.Warn().Err(&domain.SessionError{Reason: "corrupt", Err: err}).Msg("ignoring unreadable backup")
		return nil, nil
	}
	return s, nil
}
