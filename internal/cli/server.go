package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloudops-quiz-engine/internal/app"
	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/config"
	"cloudops-quiz-engine/internal/infra/memory"
	pginfra "cloudops-quiz-engine/internal/infra/postgres"
	redisinfra "cloudops-quiz-engine/internal/infra/redis"
	"cloudops-quiz-engine/internal/logging"
	"cloudops-quiz-engine/internal/metrics"
	"cloudops-quiz-engine/internal/selector"
	"cloudops-quiz-engine/internal/session"
	transport "cloudops-quiz-engine/internal/transport/http"
	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// runtime is everything the server needs, built from config.
type runtime struct {
	accessor    *bank.Accessor
	volatileFor func(tabID string) session.VolatileStore
	durableFor  func(clientID string) session.DurableStore
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	closers     []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*runtime, error) {
	rt := &runtime{registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.metrics = metrics.New(rt.registry)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			rt.Close()
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
	}

	fetcher, err := newFetcher(cfg, pool)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if redisClient != nil {
		fetcher = redisinfra.NewBankCache(redisClient, fetcher, config.TTLDuration(cfg.Bank.CacheTTL, 10*time.Minute))
	}
	rt.accessor = bank.NewAccessor(fetcher, cfg.Bank.Source,
		bank.WithTimeout(config.TTLDuration(cfg.Bank.Timeout, bank.DefaultTimeout)),
		bank.WithLogger(logger))

	volatileTTL := config.TTLDuration(cfg.Session.VolatileTTL, 2*time.Hour)
	if redisClient != nil {
		root := redisinfra.NewKVStore(redisClient, "quiz:tab", volatileTTL)
		rt.volatileFor = func(tabID string) session.VolatileStore { return root.Scoped(tabID) }
	} else {
		root := memory.NewKVStore()
		rt.volatileFor = func(tabID string) session.VolatileStore { return root.Scoped(tabID) }
	}

	switch {
	case pool != nil:
		root := pginfra.NewKVStore(pool, "profile")
		rt.durableFor = func(clientID string) session.DurableStore { return root.Scoped(clientID) }
	case redisClient != nil:
		root := redisinfra.NewKVStore(redisClient, "quiz:profile", 0)
		rt.durableFor = func(clientID string) session.DurableStore { return root.Scoped(clientID) }
	default:
		root := memory.NewKVStore()
		rt.durableFor = func(clientID string) session.DurableStore { return root.Scoped(clientID) }
	}
	return rt, nil
}

func newFetcher(cfg config.Config, pool *pgxpool.Pool) (bank.Fetcher, error) {
	switch cfg.Bank.Backend {
	case config.BackendHTTP:
		return bank.NewHTTPFetcher(resty.New()), nil
	case config.BackendFile:
		return bank.FileFetcher{}, nil
	case config.BackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("bank backend postgres needs postgres.url")
		}
		return pginfra.NewBankLoader(pool), nil
	default:
		return nil, fmt.Errorf("unknown bank backend %q", cfg.Bank.Backend)
	}
}

// serviceFactory builds one QuizService per tab over the shared accessor.
func (r *runtime) serviceFactory(cfg config.Config, logger zerolog.Logger) transport.ServiceFactory {
	expiry := config.TTLDuration(cfg.Session.Expiry, session.DefaultExpiry)
	return func(tabID, clientID string) *app.QuizService {
		tabLogger := logger.With().Str("tab", tabID).Str("client", clientID).Logger()
		store := session.NewStore(r.volatileFor(tabID), session.WithStoreLogger(tabLogger))
		durable := r.durableFor(clientID)
		recovery := session.NewRecovery(store, durable,
			session.WithExpiry(expiry),
			session.WithRecoveryLogger(tabLogger))
		return app.NewQuizService(r.accessor, store, recovery, session.NewHistory(durable, cfg.Session.HistoryLimit),
			app.WithSelectorOptions(selector.Options{RecentWindow: cfg.Session.RecentWindow}),
			app.WithRecorder(r.metrics),
			app.WithLogger(tabLogger))
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.App.Name, cfg.App.Env)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Warm the shared pool; tabs retry on their own if this fails.
	if _, err := rt.accessor.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("question pool not available at startup")
	}

	tabs := app.NewTabs()
	worker := app.NewBackupWorker(tabs, config.TTLDuration(cfg.Session.BackupInterval, app.DefaultBackupInterval), logger)
	worker.OnBackup(rt.metrics.BackupWritten)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterConfig{
			WS:             transport.NewWSHandler(rt.serviceFactory(cfg, logger), tabs),
			Pool:           rt.accessor,
			Gatherer:       rt.registry,
			Logger:         logger,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("bank", cfg.Bank.Source).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
