package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"cloudops-quiz-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

// HTTPFetcher GETs the bank document from a URL.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(client *resty.Client) *HTTPFetcher {
	if client == nil {
		client = resty.New().SetTimeout(DefaultTimeout)
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(source)
	if err != nil {
		return nil, err
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, &domain.DataError{Kind: domain.DataNotFound, Source: source, Err: fmt.Errorf("status %d", code)}
	case code >= 500:
		return nil, &domain.DataError{Kind: domain.DataServer, Source: source, Err: fmt.Errorf("status %d", code)}
	case code >= 300:
		return nil, &domain.DataError{Kind: domain.DataNetwork, Source: source, Err: fmt.Errorf("status %d", code)}
	}
	return resp.Body(), nil
}

// FileFetcher reads the bank document from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.DataError{Kind: domain.DataNotFound, Source: source, Err: err}
	}
	return data, err
}

// StaticFetcher serves in-memory bank documents keyed by source (useful for tests/demos).
type StaticFetcher struct {
	banks map[string]domain.Bank
}

func NewStaticFetcher(banks map[string]domain.Bank) *StaticFetcher {
	return &StaticFetcher{banks: banks}
}

func (f *StaticFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	b, ok := f.banks[source]
	if !ok {
		return nil, &domain.DataError{Kind: domain.DataNotFound, Source: source}
	}
	return json.Marshal(b)
}

// NewBank wraps questions in a bank document with computed header fields.
func NewBank(version string, questions []domain.Question) domain.Bank {
	domains := make(map[string]int)
	for _, q := range questions {
		domains[string(q.Domain)]++
	}
	return domain.Bank{
		Version:        version,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		TotalQuestions: len(questions),
		Domains:        domains,
		Questions:      questions,
	}
}
