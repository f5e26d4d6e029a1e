package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gfranca/shortly/go-server/internal/token"
)

func newAuthRouter(tm *token.Manager, required bool) *gin.Engine {
	router := gin.New()

	var guard gin.HandlerFunc
	if required {
		guard = RequireAuth(tm)
	} else {
		guard = OptionalAuth(tm)
	}

	router.GET("/test", guard, func(c *gin.Context) {
		if id := UserIDFromContext(c); id != nil {
			c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": nil})
	})
	return router
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	router := newAuthRouter(tm, true)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	router := newAuthRouter(tm, true)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	setupTest(t)
	expired := token.NewManager("test-secret", -time.Minute)
	tokenStr, err := expired.Generate(uuid.New())
	assert.NoError(t, err)

	tm := token.NewManager("test-secret", time.Hour)
	router := newAuthRouter(tm, true)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	userID := uuid.New()
	tokenStr, err := tm.Generate(userID)
	assert.NoError(t, err)

	router := newAuthRouter(tm, true)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestOptionalAuth_Anonymous(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	router := newAuthRouter(tm, false)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")
}

func TestOptionalAuth_BadTokenProceedsAnonymously(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	router := newAuthRouter(tm, false)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// invalid token is treated as "no identity", not an error
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")
}

func TestOptionalAuth_Identified(t *testing.T) {
	setupTest(t)
	tm := token.NewManager("test-secret", time.Hour)
	userID := uuid.New()
	tokenStr, err := tm.Generate(userID)
	assert.NoError(t, err)

	router := newAuthRouter(tm, false)

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}
