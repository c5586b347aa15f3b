package app

import (
	"context"
	"testing"
	"time"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/infra/memory"
	"cloudops-quiz-engine/internal/session"
	"github.com/rs/zerolog"
)

func newTabService(volatile, durable session.KVStore) *QuizService {
	store := session.NewStore(volatile)
	return NewQuizService(
		bank.NewAccessor(bank.NewStaticFetcher(nil), "bank"),
		store,
		session.NewRecovery(store, durable),
		session.NewHistory(durable, 0),
	)
}

func TestBackupWorkerTickSkipsTabsWithoutSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	tabs := NewTabs()

	active := newTabService(kv.Scoped("tab-1"), kv.Scoped("profile-1"))
	idle := newTabService(kv.Scoped("tab-2"), kv.Scoped("profile-2"))
	tabs.Add("tab-1", active)
	tabs.Add("tab-2", idle)

	if _, err := active.Start(ctx, session.Config{Mode: domain.ModeEndless}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// drop the backup written by Start so only the worker can restore it
	if err := kv.Scoped("profile-1").Remove(ctx, session.BackupKey); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	backups := 0
	worker := NewBackupWorker(tabs, time.Minute, zerolog.Nop())
	worker.OnBackup(func() { backups++ })

	if got := worker.tick(ctx); got != 1 {
		t.Fatalf("expected 1 backup, got %d", got)
	}
	if backups != 1 {
		t.Fatalf("expected hook to fire once, got %d", backups)
	}
	if _, ok, _ := kv.Scoped("profile-1").Get(ctx, session.BackupKey); !ok {
		t.Fatalf("expected backup for tab-1")
	}
	if _, ok, _ := kv.Scoped("profile-2").Get(ctx, session.BackupKey); ok {
		t.Fatalf("expected no backup for idle tab")
	}

	tabs.Remove("tab-1", active)
	if got := worker.tick(ctx); got != 0 {
		t.Fatalf("expected no backups after tab closed, got %d", got)
	}
}

func TestTabsRemoveKeepsNewerConnection(t *testing.T) {
	kv := memory.NewKVStore()
	tabs := NewTabs()

	first := newTabService(kv.Scoped("tab-1"), kv.Scoped("profile-1"))
	second := newTabService(kv.Scoped("tab-1"), kv.Scoped("profile-1"))
	tabs.Add("tab-1", first)
	tabs.Add("tab-1", second)

	tabs.Remove("tab-1", first)
	if tabs.Len() != 1 {
		t.Fatalf("expected the newer connection to stay registered, got %d tabs", tabs.Len())
	}
	if got := tabs.snapshot()["tab-1"]; got != second {
		t.Fatalf("expected second service to remain registered")
	}

	tabs.Remove("tab-1", second)
	if tabs.Len() != 0 {
		t.Fatalf("expected no tabs, got %d", tabs.Len())
	}
}

func TestBackupWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	worker := NewBackupWorker(NewTabs(), 10*time.Millisecond, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}
}
