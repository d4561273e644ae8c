package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/restaurant-images/internal/model"
)

// ProviderCallRepository handles persistence of outbound provider calls,
// both image search and chat completion.
type ProviderCallRepository interface {
	Create(ctx context.Context, call *model.ProviderCall) error
	CountByProviderOutcome(ctx context.Context, since time.Time) ([]model.ProviderCallCount, error)
	ListRecent(ctx context.Context, limit int) ([]model.ProviderCall, error)
}

type sqliteProviderCallRepository struct {
	db *sqlx.DB
}

// NewProviderCallRepository creates a new SQLite-backed ProviderCallRepository.
func NewProviderCallRepository(db *sqlx.DB) ProviderCallRepository {
	return &sqliteProviderCallRepository{db: db}
}

func (r *sqliteProviderCallRepository) Create(ctx context.Context, call *model.ProviderCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	call.CreatedAt = call.CreatedAt.UTC()

	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO provider_calls (request_id, provider, query, outcome, status_code, result_count, duration_ms, created_at)
		VALUES (:request_id, :provider, :query, :outcome, :status_code, :result_count, :duration_ms, :created_at)
	`, call)
	if err != nil {
		return fmt.Errorf("creating provider call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

// CountByProviderOutcome aggregates calls made at or after since.
func (r *sqliteProviderCallRepository) CountByProviderOutcome(ctx context.Context, since time.Time) ([]model.ProviderCallCount, error) {
	var counts []model.ProviderCallCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT provider, outcome, COUNT(*) AS count
		FROM provider_calls
		WHERE created_at >= ?
		GROUP BY provider, outcome
		ORDER BY provider, outcome
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("counting provider calls: %w", err)
	}
	return counts, nil
}

func (r *sqliteProviderCallRepository) ListRecent(ctx context.Context, limit int) ([]model.ProviderCall, error) {
	var calls []model.ProviderCall
	err := r.db.SelectContext(ctx, &calls,
		"SELECT * FROM provider_calls ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing provider calls: %w", err)
	}
	return calls, nil
}
