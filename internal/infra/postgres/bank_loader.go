package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloudops-quiz-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader reads and writes bank documents stored as JSONB in question_banks.
// It implements bank.Fetcher with the bank name as source.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) Fetch(ctx context.Context, name string) ([]byte, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE name=$1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.DataError{Kind: domain.DataNotFound, Source: name}
	}
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	return raw, nil
}

// Store inserts or replaces the bank under name.
func (l *BankLoader) Store(ctx context.Context, name string, b domain.Bank) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bank: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_banks (name, version, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, data = EXCLUDED.data, updated_at = now()`,
		name, b.Version, string(data))
	if err != nil {
		return fmt.Errorf("store bank: %w", err)
	}
	return nil
}
