package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloudops-quiz-engine/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single pool fetch.
const DefaultTimeout = 10 * time.Second

// Fetcher retrieves the raw bank document from a backing source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, source string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// Accessor loads the question bank once per source and keeps it in memory.
type Accessor struct {
	fetcher Fetcher
	source  string
	timeout time.Duration
	logger  zerolog.Logger
	sf      singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Pool
}

// Option customizes an Accessor.
type Option func(*Accessor)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Accessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Accessor) { a.logger = logger.With().Str("component", "bank").Logger() }
}

func NewAccessor(fetcher Fetcher, source string, opts ...Option) *Accessor {
	a := &Accessor{
		fetcher: fetcher,
		source:  source,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
		cache:   make(map[string]*Pool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load returns the pool for the configured source, fetching it on first use.
func (a *Accessor) Load(ctx context.Context) (*Pool, error) {
	return a.LoadFrom(ctx, a.source)
}

// Invalidator is implemented by fetchers that keep their own cache.
type Invalidator interface {
	Invalidate(ctx context.Context, source string) error
}

// Reload fetches the configured source again, replacing the cached pool.
func (a *Accessor) Reload(ctx context.Context) (*Pool, error) {
	a.mu.Lock()
	delete(a.cache, a.source)
	a.mu.Unlock()
	if inv, ok := a.fetcher.(Invalidator); ok {
		if err := inv.Invalidate(ctx, a.source); err != nil {
			a.logger.Warn().Err(err).Str("source", a.source).Msg("bank cache invalidation failed")
		}
	}
	return a.LoadFrom(ctx, a.source)
}

// LoadFrom returns the pool cached for source, fetching it on a miss.
func (a *Accessor) LoadFrom(ctx context.Context, source string) (*Pool, error) {
	a.mu.RLock()
	if pool, ok := a.cache[source]; ok {
		a.mu.RUnlock()
		return pool, nil
	}
	a.mu.RUnlock()

	result, err, _ := a.sf.Do(source, func() (interface{}, error) {
		a.mu.RLock()
		if pool, ok := a.cache[source]; ok {
			a.mu.RUnlock()
			return pool, nil
		}
		a.mu.RUnlock()

		pool, err := a.fetch(ctx, source)
		if err != nil {
			a.logger.Error().Err(err).Str("source", source).Msg("question pool load failed")
			return nil, err
		}

		a.mu.Lock()
		a.cache[source] = pool
		a.mu.Unlock()
		a.logger.Info().Str("source", source).Int("questions", pool.Len()).Msg("question pool loaded")
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Pool), nil
}

func (a *Accessor) fetch(ctx context.Context, source string) (*Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, classify(ctx, source, err)
	}
	return Parse(source, raw)
}

// Parse decodes a bank document. Only a non-empty question array is required.
func Parse(source string, raw []byte) (*Pool, error) {
	var doc domain.Bank
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.DataError{Kind: domain.DataMalformed, Source: source, Err: err}
	}
	if len(doc.Questions) == 0 {
		return nil, &domain.DataError{Kind: domain.DataMalformed, Source: source, Err: errors.New("bank has no questions")}
	}
	return newPoolFromBank(source, doc), nil
}

func classify(ctx context.Context, source string, err error) error {
	var dataErr *domain.DataError
	if errors.As(err, &dataErr) {
		return dataErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.DataError{Kind: domain.DataTimeout, Source: source, Err: err}
	}
	return &domain.DataError{Kind: domain.DataNetwork, Source: source, Err: fmt.Errorf("fetch: %w", err)}
}
