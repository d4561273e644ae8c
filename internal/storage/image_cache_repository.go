package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/restaurant-images/internal/model"
)

// ErrNotFound is returned when a row doesn't exist.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// ImageCacheRepository persists resolved image sets keyed like the in-memory
// cache. It is a warm-start mirror, not a source of truth.
type ImageCacheRepository interface {
	Upsert(ctx context.Context, entry *model.CacheEntry) error
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	// ListSince returns entries created at or after since, newest first.
	ListSince(ctx context.Context, since time.Time, limit int) ([]model.CacheEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// cacheRow is the table shape; images stay JSON-encoded until decoded.
type cacheRow struct {
	Key       string    `db:"cache_key"`
	Query     string    `db:"query"`
	Page      int       `db:"page"`
	Images    string    `db:"images"`
	CreatedAt time.Time `db:"created_at"`
}

func (r cacheRow) toEntry() (model.CacheEntry, error) {
	var images []model.ImageResult
	if err := json.Unmarshal([]byte(r.Images), &images); err != nil {
		return model.CacheEntry{}, fmt.Errorf("decoding images for %s: %w", r.Key, err)
	}
	return model.CacheEntry{
		Key:       r.Key,
		Query:     r.Query,
		Page:      r.Page,
		Images:    images,
		CreatedAt: r.CreatedAt,
	}, nil
}

type sqliteImageCacheRepository struct {
	db *sqlx.DB
}

// NewImageCacheRepository creates a new SQLite-backed ImageCacheRepository.
func NewImageCacheRepository(db *sqlx.DB) ImageCacheRepository {
	return &sqliteImageCacheRepository{db: db}
}

func (r *sqliteImageCacheRepository) Upsert(ctx context.Context, entry *model.CacheEntry) error {
	images, err := json.Marshal(entry.Images)
	if err != nil {
		return fmt.Errorf("encoding images: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	row := cacheRow{
		Key:       entry.Key,
		Query:     entry.Query,
		Page:      entry.Page,
		Images:    string(images),
		CreatedAt: entry.CreatedAt.UTC(),
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO image_cache (cache_key, query, page, images, created_at)
		VALUES (:cache_key, :query, :page, :images, :created_at)
		ON CONFLICT(cache_key) DO UPDATE SET
			query = excluded.query,
			page = excluded.page,
			images = excluded.images,
			created_at = excluded.created_at
	`, row)
	if err != nil {
		return fmt.Errorf("upserting cache entry %s: %w", entry.Key, err)
	}
	return nil
}

func (r *sqliteImageCacheRepository) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	var row cacheRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM image_cache WHERE cache_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cache entry %s: %w", key, err)
	}

	entry, err := row.toEntry()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *sqliteImageCacheRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]model.CacheEntry, error) {
	var rows []cacheRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM image_cache WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?",
		since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}

	entries := make([]model.CacheEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			// One corrupt row should not block the rest of the warm start.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *sqliteImageCacheRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM image_cache WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning cache entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteImageCacheRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM image_cache")
	if err != nil {
		return 0, fmt.Errorf("purging cache entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteImageCacheRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM image_cache")
	return count, err
}
