package redis

import (
	"context"
	"testing"
	"time"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestBankCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	fetcher := &countingFetcher{
		Fetcher: bank.NewStaticFetcher(map[string]domain.Bank{
			"bank": bank.NewBank("1", sampleQuestions()),
		}),
	}
	cache := NewBankCache(newClient(mr), fetcher, time.Minute)

	if _, err := cache.Fetch(context.Background(), "bank"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected fetcher called once, got %d", fetcher.calls)
	}
	if !mr.Exists("quiz:bank:bank") {
		t.Fatalf("expected bank document cached")
	}
	if ttl := mr.TTL("quiz:bank:bank"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected jittered ttl, got %s", ttl)
	}

	// Second call should hit cache, fetcher not incremented.
	_, _ = cache.Fetch(context.Background(), "bank")
	if fetcher.calls != 1 {
		t.Fatalf("expected cache hit, fetcher calls=%d", fetcher.calls)
	}
}

func TestBankCacheReloadInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	fetcher := &countingFetcher{
		Fetcher: bank.NewStaticFetcher(map[string]domain.Bank{
			"bank": bank.NewBank("1", sampleQuestions()),
		}),
	}
	accessor := bank.NewAccessor(NewBankCache(newClient(mr), fetcher, time.Minute), "bank")

	if _, err := accessor.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	pool, err := accessor.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected reload to bypass redis, fetcher calls=%d", fetcher.calls)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected 1 question, got %d", pool.Len())
	}
}

func TestBankCacheSkipsMalformedDocuments(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bad := bank.FetcherFunc(func(context.Context, string) ([]byte, error) {
		return []byte(`{"questions":[]}`), nil
	})
	cache := NewBankCache(newClient(mr), bad, time.Minute)

	if _, err := cache.Fetch(context.Background(), "bank"); err == nil {
		t.Fatalf("expected malformed error")
	}
	if mr.Exists("quiz:bank:bank") {
		t.Fatalf("malformed document must not be cached")
	}
}

type countingFetcher struct {
	bank.Fetcher
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	f.calls++
	return f.Fetcher.Fetch(ctx, source)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Domain:        domain.DomainMonitoring,
			Difficulty:    domain.DifficultyEasy,
			Type:          domain.TypeSingle,
			Prompt:        "Which service collects metrics?",
			Options:       []string{"CloudWatch", "CloudTrail"},
			CorrectAnswer: domain.Letters("A"),
		},
	}
}
