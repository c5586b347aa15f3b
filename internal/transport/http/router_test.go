package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestRouterCORS(t *testing.T) {
	router := NewRouter(RouterConfig{
		Gatherer:       prometheus.NewRegistry(),
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestRouterWithoutOriginsSkipsCORS(t *testing.T) {
	router := NewRouter(RouterConfig{Gatherer: prometheus.NewRegistry(), Logger: zerolog.Nop()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}

type failingPool struct{}

func (failingPool) Load(context.Context) (*bank.Pool, error) {
	return nil, &domain.DataError{Kind: domain.DataTimeout, Source: "bank", Err: errors.New("deadline")}
}

func TestBankStatsReportsLoadFailure(t *testing.T) {
	router := NewRouter(RouterConfig{Pool: failingPool{}, Gatherer: prometheus.NewRegistry(), Logger: zerolog.Nop()})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/bank/stats", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var payload errorPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Category != "timeout" {
		t.Fatalf("expected timeout category, got %+v", payload)
	}
}
