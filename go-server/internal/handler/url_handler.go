package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/internal/middleware"
	"github.com/gfranca/shortly/go-server/internal/repository"
	"github.com/gfranca/shortly/go-server/internal/service"
)

type ShortenRequest struct {
	URL  string `json:"url" binding:"required"`
	Slug string `json:"slug"`
}

type UpdateURLRequest struct {
	URL  *string `json:"url"`
	Slug *string `json:"slug"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type URLHandler struct {
	service *service.URLService
	logger  *zap.Logger
}

func NewURLHandler(service *service.URLService) *URLHandler {
	return &URLHandler{
		service: service,
		logger:  zap.L().With(zap.String("component", "URLHandler")),
	}
}

// Shorten handles POST /shorten. Auth is optional: an authenticated caller
// owns the record, an anonymous one does not.
func (h *URLHandler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	ownerID := middleware.UserIDFromContext(c)

	short, err := h.service.Shorten(c.Request.Context(), req.URL, req.Slug, ownerID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, short)
}

// Redirect handles GET /:slug. It never answers with a JSON body: a known
// slug gets a normal redirect, anything else degrades to a temporary
// redirect toward the fallback page so intermediaries do not cache it.
func (h *URLHandler) Redirect(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))

	target, fallback := h.service.Redirect(c.Request.Context(), slug)
	if fallback {
		c.Redirect(http.StatusTemporaryRedirect, target)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// List handles GET /urls. With a valid token it lists the caller's records,
// without one it lists anonymously created records only.
func (h *URLHandler) List(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)

	urls, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"urls": urls,
	})
}

// Update handles PUT /:slug. The route requires auth, so a missing identity
// here means the middleware was bypassed and is treated as unauthorized.
func (h *URLHandler) Update(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	if ownerID == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "Unauthorized access",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req UpdateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	slug := strings.TrimSpace(c.Param("slug"))

	short, err := h.service.Update(c.Request.Context(), slug, service.UpdateInput{
		TargetURL: req.URL,
		Slug:      req.Slug,
	}, *ownerID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, short)
}

func (h *URLHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "URL must start with http:// or https:// and contain a valid domain",
			Code:  "INVALID_URL",
		})
	case errors.Is(err, service.ErrInvalidSlug):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Slug may only contain letters, numbers, underscores and hyphens",
			Code:  "INVALID_SLUG",
		})
	case errors.Is(err, repository.ErrSlugTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "Slug already in use",
			Code:  "SLUG_IN_USE",
		})
	case errors.Is(err, repository.ErrURLNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Short URL not found",
			Code:  "URL_NOT_FOUND",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "You don't have permission to update this URL",
			Code:  "FORBIDDEN",
		})
	default:
		h.logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
