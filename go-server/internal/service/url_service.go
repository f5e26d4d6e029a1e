package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/internal/metrics"
	"github.com/gfranca/shortly/go-server/internal/model"
	"github.com/gfranca/shortly/go-server/internal/repository"
)

var (
	ErrInvalidURL  = errors.New("invalid URL format")
	ErrInvalidSlug = errors.New("invalid slug format")
	ErrForbidden   = errors.New("URL does not belong to this user")
)

const (
	slugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
	slugLength   = 8

	// retry budget for generated slugs only; a user-supplied slug collision
	// is surfaced immediately
	maxSlugAttempts = 5
)

var (
	urlPattern  = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)
	slugPattern = regexp.MustCompile(`^[\w-]+$`)
)

// ShortURL is the projection returned by Shorten and Update.
type ShortURL struct {
	Slug      string `json:"slug"`
	TargetURL string `json:"url"`
	ShortLink string `json:"short_url"`
}

// URLListItem is one entry of the listing projection.
type URLListItem struct {
	Slug      string `json:"slug"`
	TargetURL string `json:"url"`
	ShortLink string `json:"short_url"`
	Visits    int64  `json:"visits"`
	CreatedAt string `json:"created_at"`
}

// UpdateInput is a partial update; nil fields are left as they are.
type UpdateInput struct {
	TargetURL *string
	Slug      *string
}

// URLService implements shortening, redirecting, listing and updating of
// URL records on top of the repository.
type URLService struct {
	repo        repository.URLRepository
	baseURL     string
	fallbackURL string
	logger      *zap.Logger
}

func NewURLService(repo repository.URLRepository, baseURL, fallbackURL string) *URLService {
	return &URLService{
		repo:        repo,
		baseURL:     strings.TrimRight(baseURL, "/"),
		fallbackURL: fallbackURL,
		logger:      zap.L().With(zap.String("component", "URLService")),
	}
}

// Shorten validates the target URL, allocates a slug (the caller's custom
// slug or a random 8-character one) and persists the record. ownerID is nil
// for anonymous callers. Uniqueness is decided by the store: a collision on
// a custom slug returns ErrSlugTaken, a collision on a generated slug is
// re-rolled up to maxSlugAttempts times.
func (s *URLService) Shorten(ctx context.Context, rawURL, customSlug string, ownerID *uuid.UUID) (*ShortURL, error) {
	if !urlPattern.MatchString(rawURL) {
		s.logger.Warn("Invalid URL provided", zap.String("url", rawURL))
		metrics.ShortenTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidURL
	}

	if customSlug != "" && !slugPattern.MatchString(customSlug) {
		s.logger.Warn("Invalid custom slug", zap.String("slug", customSlug))
		metrics.ShortenTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidSlug
	}

	attempts := maxSlugAttempts
	if customSlug != "" {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		slug := customSlug
		if slug == "" {
			slug = newSlug()
		}

		u := &model.URL{
			Slug:      slug,
			TargetURL: rawURL,
			UserID:    ownerID,
		}

		err := s.repo.Insert(ctx, u)
		if err == nil {
			s.logger.Info("URL shortened", zap.String("slug", u.Slug))
			metrics.ShortenTotal.WithLabelValues("created").Inc()
			return s.project(u), nil
		}

		lastErr = err
		if !errors.Is(err, repository.ErrSlugTaken) || customSlug != "" {
			break
		}
		s.logger.Warn("Generated slug collided, retrying", zap.String("slug", slug))
	}

	if errors.Is(lastErr, repository.ErrSlugTaken) {
		metrics.ShortenTotal.WithLabelValues("conflict").Inc()
	} else {
		metrics.ShortenTotal.WithLabelValues("error").Inc()
	}
	return nil, lastErr
}

// Redirect resolves a slug to its target. The second return value reports
// whether the target is the configured fallback page (unknown slug or a
// store failure); the redirect itself never fails. On a hit the visit
// counter is incremented best-effort before returning.
func (s *URLService) Redirect(ctx context.Context, slug string) (string, bool) {
	target, err := s.repo.ResolveSlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, repository.ErrURLNotFound) {
			s.logger.Error("Slug resolution failed, serving fallback",
				zap.Error(err), zap.String("slug", slug))
		}
		metrics.RedirectTotal.WithLabelValues("fallback").Inc()
		return s.fallbackURL, true
	}

	// The visit count is observable but not critical: a failed increment is
	// logged and counted, never allowed to block the redirect.
	if err := s.repo.IncrementVisits(ctx, slug); err != nil {
		s.logger.Warn("Failed to increment visits", zap.Error(err), zap.String("slug", slug))
		metrics.VisitIncrementFailures.Inc()
	}

	metrics.RedirectTotal.WithLabelValues("hit").Inc()
	return target, false
}

// List returns the caller's records, or the anonymous records when ownerID
// is nil. Order is whatever the store returns.
func (s *URLService) List(ctx context.Context, ownerID *uuid.UUID) ([]URLListItem, error) {
	urls, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	items := make([]URLListItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, URLListItem{
			Slug:      u.Slug,
			TargetURL: u.TargetURL,
			ShortLink: s.shortLink(u.Slug),
			Visits:    u.Visits,
			CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	return items, nil
}

// Update applies a partial update to the record identified by slug on behalf
// of ownerID. The checks run strictly in order: existence, ownership, input
// validity; only then is the mutation attempted, so a rejected request never
// writes anything.
func (s *URLService) Update(ctx context.Context, slug string, input UpdateInput, ownerID uuid.UUID) (*ShortURL, error) {
	record, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if record.UserID == nil || *record.UserID != ownerID {
		s.logger.Warn("Update forbidden",
			zap.String("slug", slug), zap.String("user_id", ownerID.String()))
		return nil, ErrForbidden
	}

	if input.TargetURL != nil && !isAbsoluteHTTPURL(*input.TargetURL) {
		return nil, ErrInvalidURL
	}

	if input.Slug != nil && !slugPattern.MatchString(*input.Slug) {
		return nil, ErrInvalidSlug
	}

	updated, err := s.repo.Update(ctx, slug, repository.UpdateParams{
		TargetURL: input.TargetURL,
		Slug:      input.Slug,
	})
	if err != nil {
		return nil, err
	}

	return s.project(updated), nil
}

func (s *URLService) project(u *model.URL) *ShortURL {
	return &ShortURL{
		Slug:      u.Slug,
		TargetURL: u.TargetURL,
		ShortLink: s.shortLink(u.Slug),
	}
}

func (s *URLService) shortLink(slug string) string {
	return s.baseURL + "/" + slug
}

func newSlug() string {
	slug := make([]byte, slugLength)
	for i := 0; i < slugLength; i++ {
		randomIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(slugAlphabet))))
		if err != nil {
			panic(fmt.Sprintf("failed to generate random number: %v", err))
		}
		slug[i] = slugAlphabet[randomIndex.Int64()]
	}
	return string(slug)
}

func isAbsoluteHTTPURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}
