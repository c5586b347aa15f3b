package session

import (
	"context"
	"fmt"

	"cloudops-quiz-engine/internal/domain"
)

// DefaultHistoryLimit caps how many summaries History keeps.
const DefaultHistoryLimit = 10

// History keeps summaries of ended sessions in the durable store, newest first.
type History struct {
	durable DurableStore
	limit   int
}

func NewHistory(durable DurableStore, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{durable: durable, limit: limit}
}

// List returns the stored summaries. An unreadable list reads as empty.
func (h *History) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	raw, ok, err := h.durable.Get(ctx, HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !ok {
		return []domain.HistoryEntry{}, nil
	}
	entries, err := decodeHistory(raw)
	if err != nil {
		return []domain.HistoryEntry{}, nil
	}
	return entries, nil
}

// Append adds entry at the front and drops the oldest beyond the limit.
func (h *History) Append(ctx context.Context, entry domain.HistoryEntry) error {
	entries, err := h.List(ctx)
	if err != nil {
		return err
	}
	entries = append([]domain.HistoryEntry{entry}, entries...)
	if len(entries) > h.limit {
		entries = entries[:h.limit]
	}
	raw, err := encodeHistory(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.durable.Set(ctx, HistoryKey, raw); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
