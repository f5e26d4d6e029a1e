package route

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/gfranca/shortly/go-server/config"
	"github.com/gfranca/shortly/go-server/internal/handler"
	"github.com/gfranca/shortly/go-server/internal/middleware"
	"github.com/gfranca/shortly/go-server/internal/repository"
	"github.com/gfranca/shortly/go-server/internal/service"
	"github.com/gfranca/shortly/go-server/internal/token"
)

func SetupRouter(cfg *config.Config, redisClient *redis.Client, pgClient *pgxpool.Pool) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.MetricsMiddleware())

	tokens := token.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	urlRepo := repository.NewPostgresURLRepository(pgClient, redisClient)
	userRepo := repository.NewUserRepository(pgClient)

	urlService := service.NewURLService(urlRepo, cfg.BaseURL, cfg.FallbackURL)
	authService := service.NewAuthService(userRepo, tokens)

	urlHandler := handler.NewURLHandler(urlService)
	authHandler := handler.NewAuthHandler(authService)
	healthHandler := handler.NewHealthHandler(pgClient, redisClient)

	limiter := middleware.NewRateLimiter(60, time.Minute)

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	r.POST("/shorten", limiter.Middleware(), middleware.OptionalAuth(tokens), urlHandler.Shorten)
	r.GET("/urls", limiter.Middleware(), middleware.OptionalAuth(tokens), urlHandler.List)
	r.PUT("/:slug", middleware.RequireAuth(tokens), urlHandler.Update)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// hot path, intentionally last and unauthenticated
	r.GET("/:slug", urlHandler.Redirect)

	return r
}
