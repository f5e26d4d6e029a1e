package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/internal/model"
)

var (
	ErrURLNotFound   = errors.New("URL not found")
	ErrSlugTaken     = errors.New("slug already in use")
	ErrDatabaseError = errors.New("database error")
)

const (
	cacheTimeout = 24 * time.Hour
	dbTimeout    = 5 * time.Second

	// class 23 integrity violation, unique index
	pgUniqueViolation = "23505"
)

// UpdateParams is a partial update of a URL record. Nil fields are left
// untouched.
type UpdateParams struct {
	TargetURL *string
	Slug      *string
}

// URLRepository is the persistence contract for shortened URLs. The slug
// unique index in the store is the sole arbiter of uniqueness: Insert and
// Update surface constraint violations as ErrSlugTaken instead of
// pre-checking, so concurrent writers cannot race past a lookup.
type URLRepository interface {
	Insert(ctx context.Context, u *model.URL) error
	FindBySlug(ctx context.Context, slug string) (*model.URL, error)
	FindByOwner(ctx context.Context, ownerID *uuid.UUID) ([]model.URL, error)
	ResolveSlug(ctx context.Context, slug string) (string, error)
	IncrementVisits(ctx context.Context, slug string) error
	Update(ctx context.Context, slug string, params UpdateParams) (*model.URL, error)
}

// PostgresURLRepository implements URLRepository using PostgreSQL, with a
// redis read-through cache on the redirect lookup.
type PostgresURLRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewPostgresURLRepository creates a new PostgresURLRepository
func NewPostgresURLRepository(db *pgxpool.Pool, redisClient *redis.Client) *PostgresURLRepository {
	return &PostgresURLRepository{
		db:          db,
		redisClient: redisClient,
		logger:      zap.L().With(zap.String("component", "PostgresURLRepository")),
	}
}

// Insert stores a new URL record. A slug collision is reported as
// ErrSlugTaken.
func (r *PostgresURLRepository) Insert(ctx context.Context, u *model.URL) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query :=
		`INSERT INTO urls (slug, url, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, visits, created_at`

	err := r.db.QueryRow(ctx, query, u.Slug, u.TargetURL, u.UserID).
		Scan(&u.ID, &u.Visits, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Info("Slug already taken", zap.String("slug", u.Slug))
			return ErrSlugTaken
		}
		r.logger.Error("Failed to insert URL", zap.Error(err), zap.String("slug", u.Slug))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return nil
}

// FindBySlug retrieves a full URL record by its slug.
func (r *PostgresURLRepository) FindBySlug(ctx context.Context, slug string) (*model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT id, slug, url, user_id, visits, created_at FROM urls WHERE slug = $1`

	u := &model.URL{}
	err := r.db.QueryRow(ctx, query, slug).
		Scan(&u.ID, &u.Slug, &u.TargetURL, &u.UserID, &u.Visits, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("URL not found", zap.String("slug", slug))
			return nil, ErrURLNotFound
		}
		r.logger.Error("Database query error", zap.Error(err), zap.String("slug", slug))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return u, nil
}

// FindByOwner lists records belonging to ownerID. A nil ownerID selects only
// ownerless records (the anonymous listing), never the whole table.
func (r *PostgresURLRepository) FindByOwner(ctx context.Context, ownerID *uuid.UUID) ([]model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if ownerID != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, slug, url, user_id, visits, created_at FROM urls WHERE user_id = $1`, *ownerID)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, slug, url, user_id, visits, created_at FROM urls WHERE user_id IS NULL`)
	}
	if err != nil {
		r.logger.Error("Database query error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	urls := []model.URL{}
	for rows.Next() {
		var u model.URL
		if err := rows.Scan(&u.ID, &u.Slug, &u.TargetURL, &u.UserID, &u.Visits, &u.CreatedAt); err != nil {
			r.logger.Error("Row scan error", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Rows iteration error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return urls, nil
}

// ResolveSlug returns the target URL for a slug, checking the cache first.
// This is the redirect hot path; it deliberately skips columns the redirect
// does not need.
func (r *PostgresURLRepository) ResolveSlug(ctx context.Context, slug string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// Try cache first if Redis is available
	if r.redisClient != nil {
		val, err := r.redisClient.Get(ctx, cacheKey(slug)).Result()
		if err == nil {
			r.logger.Debug("Slug found in cache", zap.String("slug", slug))
			return val, nil
		}

		if err != redis.Nil {
			r.logger.Warn("Cache error", zap.Error(err), zap.String("slug", slug))
		}
	}

	// Query database
	var url string
	err := r.db.QueryRow(ctx, "SELECT url FROM urls WHERE slug = $1", slug).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Slug not found", zap.String("slug", slug))
			return "", ErrURLNotFound
		}
		r.logger.Error("Database query error", zap.Error(err), zap.String("slug", slug))
		return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	// Cache the result if Redis is available
	if r.redisClient != nil {
		if err := r.redisClient.Set(ctx, cacheKey(slug), url, cacheTimeout).Err(); err != nil {
			r.logger.Warn("Failed to cache slug", zap.Error(err), zap.String("slug", slug))
		}
	}

	r.logger.Debug("Slug found in database", zap.String("slug", slug))
	return url, nil
}

// IncrementVisits adds one to the visit counter. Keyed by slug so the
// cached redirect path can issue it without a prior SELECT.
func (r *PostgresURLRepository) IncrementVisits(ctx context.Context, slug string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, "UPDATE urls SET visits = visits + 1 WHERE slug = $1", slug)
	if err != nil {
		r.logger.Error("Failed to increment visits", zap.Error(err), zap.String("slug", slug))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		// record deleted between resolve and increment; the cache can be
		// ahead of the table for up to cacheTimeout
		return ErrURLNotFound
	}

	return nil
}

// Update applies a partial update to the record identified by slug and
// returns the updated row. A collision on the new slug is reported as
// ErrSlugTaken via the unique index, not a pre-check. The cache entry for
// the old slug is invalidated.
func (r *PostgresURLRepository) Update(ctx context.Context, slug string, params UpdateParams) (*model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query :=
		`UPDATE urls
		SET url = COALESCE($2, url), slug = COALESCE($3, slug)
		WHERE slug = $1
		RETURNING id, slug, url, user_id, visits, created_at`

	u := &model.URL{}
	err := r.db.QueryRow(ctx, query, slug, params.TargetURL, params.Slug).
		Scan(&u.ID, &u.Slug, &u.TargetURL, &u.UserID, &u.Visits, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		if isUniqueViolation(err) {
			r.logger.Info("Slug already taken", zap.String("slug", slug))
			return nil, ErrSlugTaken
		}
		r.logger.Error("Failed to update URL", zap.Error(err), zap.String("slug", slug))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	// Drop the stale cache entry so redirects stop serving the old target.
	if r.redisClient != nil {
		if err := r.redisClient.Del(ctx, cacheKey(slug)).Err(); err != nil {
			r.logger.Warn("Failed to invalidate cache", zap.Error(err), zap.String("slug", slug))
		}
	}

	r.logger.Info("URL updated", zap.String("slug", slug), zap.String("new_slug", u.Slug))
	return u, nil
}

func cacheKey(slug string) string {
	return "slug:" + slug
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
