package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBackupInterval is how often live sessions are copied to the durable store.
const DefaultBackupInterval = 5 * time.Minute

// Tabs tracks the quiz services of open tabs so background jobs can reach them.
type Tabs struct {
	mu       sync.RWMutex
	services map[string]*QuizService
}

func NewTabs() *Tabs {
	return &Tabs{services: make(map[string]*QuizService)}
}

func (t *Tabs) Add(tabID string, svc *QuizService) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.services[tabID] = svc
}

// Remove unregisters svc. A tab ID already taken over by a newer
// connection stays registered.
func (t *Tabs) Remove(tabID string, svc *QuizService) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.services[tabID] == svc {
		delete(t.services, tabID)
	}
}

func (t *Tabs) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.services)
}

func (t *Tabs) snapshot() map[string]*QuizService {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*QuizService, len(t.services))
	for id, svc := range t.services {
		out[id] = svc
	}
	return out
}

// BackupWorker periodically backs up every open tab's live session.
type BackupWorker struct {
	tabs     *Tabs
	interval time.Duration
	logger   zerolog.Logger
	onBackup func()
}

func NewBackupWorker(tabs *Tabs, interval time.Duration, logger zerolog.Logger) *BackupWorker {
	if interval <= 0 {
		interval = DefaultBackupInterval
	}
	return &BackupWorker{
		tabs:     tabs,
		interval: interval,
		logger:   logger.With().Str("component", "session_backup_worker").Logger(),
		onBackup: func() {},
	}
}

// OnBackup registers a hook called after each backup written, e.g. a metrics counter.
func (w *BackupWorker) OnBackup(fn func()) {
	if fn != nil {
		w.onBackup = fn
	}
}

// Run blocks until context cancellation.
func (w *BackupWorker) Run(ctx context.Context) error {
	if w.tabs == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick returns how many sessions were backed up.
func (w *BackupWorker) tick(ctx context.Context) int {
	written := 0
	for tabID, svc := range w.tabs.snapshot() {
		ok, err := svc.Backup(ctx)
		if err != nil {
			w.logger.Warn().Err(err).Str("tab", tabID).Msg("periodic backup failed")
			continue
		}
		if ok {
			written++
			w.onBackup()
		}
	}
	if written > 0 {
		w.logger.Debug().Int("sessions", written).Msg("sessions backed up")
	}
	return written
}
