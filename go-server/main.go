package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/config"
	db "github.com/gfranca/shortly/go-server/internal/database"
	"github.com/gfranca/shortly/go-server/internal/metrics"
	"github.com/gfranca/shortly/go-server/internal/observability"
	route "github.com/gfranca/shortly/go-server/internal/routes"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	obs, err := observability.Setup(context.Background())
	if err != nil {
		logger.Fatal("error setting up observability", zap.Error(err))
	}
	logger = obs.Logger
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			logger.Warn("observability shutdown", zap.Error(err))
		}
	}()

	secrets, err := config.LoadConfig()
	if err != nil {
		logger.Fatal(
			"error loading configuration",
			zap.Error(err),
		)
	}

	redisClient, err := db.NewRedisClient(secrets)
	if err != nil {
		logger.Fatal("redis failed to initialize",
			zap.Error(err),
		)
	}
	logger.Info("redis connection established")

	pgClient, err := db.NewPostgresClient(secrets)
	if err != nil {
		logger.Fatal("postgres failed to initialize",
			zap.Error(err),
		)
	}
	logger.Info("postgres connection established")

	metrics.StartSystemMetricsCollection()

	r := route.SetupRouter(secrets, redisClient, pgClient)
	logger.Info("starting server", zap.String("addr", secrets.ServerAddr))
	if err := r.Run(secrets.ServerAddr); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
