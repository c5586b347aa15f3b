package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/logging"
	"cloudops-quiz-engine/internal/selector"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// PoolLoader returns the shared question pool.
type PoolLoader interface {
	Load(ctx context.Context) (*bank.Pool, error)
}

// RouterConfig carries what NewRouter mounts. Nil fields are skipped.
type RouterConfig struct {
	WS       *WSHandler
	Pool     PoolLoader
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	// AllowedOrigins enables CORS for the listed browser origins.
	AllowedOrigins []string
}

// NewRouter wires health, metrics, bank stats and the websocket endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(withLogger(cfg.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.Pool != nil {
		r.Get("/v1/bank/stats", bankStatsHandler(cfg.Pool))
	}
	if cfg.WS != nil {
		r.Get("/ws", cfg.WS.ServeWS)
	}
	return r
}

type bankStats struct {
	Source       string                    `json:"source"`
	Version      string                    `json:"version"`
	GeneratedAt  string                    `json:"generatedAt"`
	Total        int                       `json:"totalQuestions"`
	Domains      map[domain.Domain]int     `json:"domains"`
	Difficulties map[domain.Difficulty]int `json:"difficulties"`
}

func bankStatsHandler(pool PoolLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := pool.Load(r.Context())
		if err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("bank stats unavailable")
			respondError(w, http.StatusBadGateway, err)
			return
		}
		qs := p.Questions()
		meta := p.Meta()
		respondJSON(w, http.StatusOK, bankStats{
			Source:       p.Source(),
			Version:      meta.Version,
			GeneratedAt:  meta.GeneratedAt,
			Total:        len(qs),
			Domains:      selector.DomainDistribution(qs),
			Difficulties: selector.DifficultyDistribution(qs),
		})
	}
}

func withLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, toErrorPayload(err))
}

type errorPayload struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

func toErrorPayload(err error) errorPayload {
	out := errorPayload{Message: err.Error()}
	var dataErr *domain.DataError
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &dataErr):
		out.Category = dataErr.Category()
	case errors.As(err, &verr):
		out.Category = "validation"
	case errors.Is(err, domain.ErrSessionNotFound):
		out.Category = "no-session"
	}
	return out
}
