package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/internal/model"
	"github.com/gfranca/shortly/go-server/internal/repository"
)

// MockURLRepository is a mock implementation of URLRepository
type MockURLRepository struct {
	mock.Mock
}

func (m *MockURLRepository) Insert(ctx context.Context, u *model.URL) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockURLRepository) FindBySlug(ctx context.Context, slug string) (*model.URL, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

func (m *MockURLRepository) FindByOwner(ctx context.Context, ownerID *uuid.UUID) ([]model.URL, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.URL), args.Error(1)
}

func (m *MockURLRepository) ResolveSlug(ctx context.Context, slug string) (string, error) {
	args := m.Called(ctx, slug)
	return args.String(0), args.Error(1)
}

func (m *MockURLRepository) IncrementVisits(ctx context.Context, slug string) error {
	args := m.Called(ctx, slug)
	return args.Error(0)
}

func (m *MockURLRepository) Update(ctx context.Context, slug string, params repository.UpdateParams) (*model.URL, error) {
	args := m.Called(ctx, slug, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

func setupService(t *testing.T) (*URLService, *MockURLRepository) {
	// Initialize logger for tests
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	mockRepo := new(MockURLRepository)
	service := NewURLService(mockRepo, "https://sho.rt", "https://sho.rt/404")

	return service, mockRepo
}

func TestNewURLService(t *testing.T) {
	mockRepo := new(MockURLRepository)
	service := NewURLService(mockRepo, "https://sho.rt/", "https://sho.rt/404")

	assert.NotNil(t, service)
	assert.NotNil(t, service.repo)
	assert.NotNil(t, service.logger)
	// trailing slash on the base URL must not double up
	assert.Equal(t, "https://sho.rt", service.baseURL)
}

func TestShorten_RandomSlug(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).Return(nil)

	short, err := service.Shorten(ctx, "https://example.com", "", nil)

	assert.NoError(t, err)
	assert.Len(t, short.Slug, slugLength)
	for _, ch := range short.Slug {
		assert.Contains(t, slugAlphabet, string(ch))
	}
	assert.Equal(t, "https://example.com", short.TargetURL)
	assert.Equal(t, "https://sho.rt/"+short.Slug, short.ShortLink)
	mockRepo.AssertExpectations(t)
}

func TestShorten_CustomSlug(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerID := uuid.New()

	mockRepo.On("Insert", ctx, mock.MatchedBy(func(u *model.URL) bool {
		return u.Slug == "abc123" && u.UserID != nil && *u.UserID == ownerID
	})).Return(nil)

	short, err := service.Shorten(ctx, "https://example.com", "abc123", &ownerID)

	assert.NoError(t, err)
	assert.Equal(t, "abc123", short.Slug)
	assert.Equal(t, "https://sho.rt/abc123", short.ShortLink)
	mockRepo.AssertExpectations(t)
}

func TestShorten_InvalidURL(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		url  string
	}{
		{"empty URL", ""},
		{"no scheme", "example.com"},
		{"invalid format", "not a valid url"},
		{"ftp scheme", "ftp://example.com/file"},
		{"whitespace in URL", "https://exa mple.com"},
		{"scheme only", "https://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Shorten(ctx, tc.url, "", nil)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
	mockRepo.AssertNotCalled(t, "Insert")
}

func TestShorten_CaseInsensitiveScheme(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).Return(nil)

	_, err := service.Shorten(ctx, "HTTPS://example.com", "", nil)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestShorten_InvalidSlug(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		slug string
	}{
		{"space", "my slug"},
		{"slash", "a/b"},
		{"dot", "a.b"},
		{"unicode punctuation", "slug!"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Shorten(ctx, "https://example.com", tc.slug, nil)
			assert.ErrorIs(t, err, ErrInvalidSlug)
		})
	}
	mockRepo.AssertNotCalled(t, "Insert")
}

func TestShorten_CustomSlugConflict_NoRetry(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).
		Return(repository.ErrSlugTaken).Once()

	_, err := service.Shorten(ctx, "https://example.com", "mine", nil)

	assert.ErrorIs(t, err, repository.ErrSlugTaken)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestShorten_RandomSlugCollision_Retries(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).
		Return(repository.ErrSlugTaken).Twice()
	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).
		Return(nil).Once()

	short, err := service.Shorten(ctx, "https://example.com", "", nil)

	assert.NoError(t, err)
	assert.Len(t, short.Slug, slugLength)
	mockRepo.AssertNumberOfCalls(t, "Insert", 3)
}

func TestShorten_RandomSlugCollision_Exhausted(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).
		Return(repository.ErrSlugTaken).Times(maxSlugAttempts)

	_, err := service.Shorten(ctx, "https://example.com", "", nil)

	assert.ErrorIs(t, err, repository.ErrSlugTaken)
	mockRepo.AssertExpectations(t)
}

func TestShorten_RepositoryError(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	dbError := errors.New("database connection failed")
	mockRepo.On("Insert", ctx, mock.AnythingOfType("*model.URL")).Return(dbError).Once()

	_, err := service.Shorten(ctx, "https://example.com", "", nil)

	assert.Equal(t, dbError, err)
	// generic store failures are not retried
	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestRedirect_Hit(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("ResolveSlug", ctx, "abc123").Return("https://example.com", nil)
	mockRepo.On("IncrementVisits", ctx, "abc123").Return(nil)

	target, fallback := service.Redirect(ctx, "abc123")

	assert.Equal(t, "https://example.com", target)
	assert.False(t, fallback)
	mockRepo.AssertExpectations(t)
}

func TestRedirect_UnknownSlug_Fallback(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("ResolveSlug", ctx, "doesnotexist").
		Return("", repository.ErrURLNotFound)

	target, fallback := service.Redirect(ctx, "doesnotexist")

	assert.Equal(t, "https://sho.rt/404", target)
	assert.True(t, fallback)
	mockRepo.AssertNotCalled(t, "IncrementVisits")
}

func TestRedirect_StoreError_Fallback(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("ResolveSlug", ctx, "abc123").
		Return("", repository.ErrDatabaseError)

	target, fallback := service.Redirect(ctx, "abc123")

	assert.Equal(t, "https://sho.rt/404", target)
	assert.True(t, fallback)
}

func TestRedirect_IncrementFailureDoesNotBlock(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("ResolveSlug", ctx, "abc123").Return("https://example.com", nil)
	mockRepo.On("IncrementVisits", ctx, "abc123").
		Return(repository.ErrDatabaseError)

	target, fallback := service.Redirect(ctx, "abc123")

	assert.Equal(t, "https://example.com", target)
	assert.False(t, fallback)
	mockRepo.AssertExpectations(t)
}

func TestList_Owner(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mockRepo.On("FindByOwner", ctx, &ownerID).Return([]model.URL{
		{Slug: "abc123", TargetURL: "https://example.com", UserID: &ownerID, Visits: 42, CreatedAt: created},
	}, nil)

	items, err := service.List(ctx, &ownerID)

	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "abc123", items[0].Slug)
	assert.Equal(t, "https://sho.rt/abc123", items[0].ShortLink)
	assert.Equal(t, int64(42), items[0].Visits)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", items[0].CreatedAt)
	mockRepo.AssertExpectations(t)
}

func TestList_Anonymous(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("FindByOwner", ctx, (*uuid.UUID)(nil)).Return([]model.URL{}, nil)

	items, err := service.List(ctx, nil)

	assert.NoError(t, err)
	assert.Empty(t, items)
	mockRepo.AssertExpectations(t)
}

func TestUpdate_NotFound(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("FindBySlug", ctx, "missing").Return(nil, repository.ErrURLNotFound)

	_, err := service.Update(ctx, "missing", UpdateInput{}, uuid.New())

	assert.ErrorIs(t, err, repository.ErrURLNotFound)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestUpdate_Forbidden_OtherOwner(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerA := uuid.New()
	ownerB := uuid.New()

	mockRepo.On("FindBySlug", ctx, "mine").Return(&model.URL{
		Slug:      "mine",
		TargetURL: "https://a.example.com",
		UserID:    &ownerA,
	}, nil)

	_, err := service.Update(ctx, "mine", UpdateInput{}, ownerB)

	assert.ErrorIs(t, err, ErrForbidden)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestUpdate_Forbidden_AnonymousRecord(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("FindBySlug", ctx, "anon").Return(&model.URL{
		Slug:      "anon",
		TargetURL: "https://example.com",
	}, nil)

	_, err := service.Update(ctx, "anon", UpdateInput{}, uuid.New())

	assert.ErrorIs(t, err, ErrForbidden)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestUpdate_InvalidURL(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	badURL := "not-a-url"

	mockRepo.On("FindBySlug", ctx, "mine").Return(&model.URL{
		Slug:   "mine",
		UserID: &ownerID,
	}, nil)

	_, err := service.Update(ctx, "mine", UpdateInput{TargetURL: &badURL}, ownerID)

	assert.ErrorIs(t, err, ErrInvalidURL)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestUpdate_Success(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	newURL := "https://x.com"

	mockRepo.On("FindBySlug", ctx, "mine").Return(&model.URL{
		Slug:   "mine",
		UserID: &ownerID,
	}, nil)
	mockRepo.On("Update", ctx, "mine", repository.UpdateParams{TargetURL: &newURL}).
		Return(&model.URL{Slug: "mine", TargetURL: newURL, UserID: &ownerID}, nil)

	short, err := service.Update(ctx, "mine", UpdateInput{TargetURL: &newURL}, ownerID)

	assert.NoError(t, err)
	assert.Equal(t, "mine", short.Slug)
	assert.Equal(t, "https://x.com", short.TargetURL)
	assert.Equal(t, "https://sho.rt/mine", short.ShortLink)
	mockRepo.AssertExpectations(t)
}

func TestUpdate_SlugConflict(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	newSlug := "taken"

	mockRepo.On("FindBySlug", ctx, "mine").Return(&model.URL{
		Slug:   "mine",
		UserID: &ownerID,
	}, nil)
	mockRepo.On("Update", ctx, "mine", repository.UpdateParams{Slug: &newSlug}).
		Return(nil, repository.ErrSlugTaken)

	_, err := service.Update(ctx, "mine", UpdateInput{Slug: &newSlug}, ownerID)

	assert.ErrorIs(t, err, repository.ErrSlugTaken)
	mockRepo.AssertExpectations(t)
}

func TestNewSlug_Distribution(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := newSlug()
		assert.Len(t, s, slugLength)
		assert.False(t, seen[s], "duplicate slug %q in 100 draws", s)
		seen[s] = true
	}
}
