package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/config"
	"github.com/ngconnect/marketplace-api/internal/database"
	"github.com/ngconnect/marketplace-api/internal/handler"
	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/logger"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/queue"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/router"
	queuepublisher "github.com/ngconnect/marketplace-api/internal/service"
	"github.com/ngconnect/marketplace-api/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	lg := logger.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	categories := repository.NewCategoryRepo(db)
	requests := repository.NewRequestRepo(db)
	images := repository.NewImageRepo(db)

	var uploader storage.Uploader
	if cfg.S3Bucket != "" {
		up, err := storage.NewS3Uploader(cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		uploader = up
	} else {
		lg.Warn().Msg("S3_BUCKET not set; image uploads disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.EchoHandler(lg)

	rdb := config.NewRedisClient()
	if rdb != nil {
		rlCfg := config.LoadRateLimitConfig()
		if rlCfg.Enabled {
			// Installed ahead of the route groups, before any auth
			// middleware runs, so only IP-based key strategies apply.
			e.Use(middleware.NewTokenBucket(rlCfg, rdb))
		}
	} else {
		lg.Warn().Msg("redis unavailable; rate limiting and response cache disabled")
	}
	var cache echo.MiddlewareFunc
	if rdb != nil {
		cacheCfg := config.LoadCacheConfig()
		if cacheCfg.Enabled {
			cache = middleware.NewResponseCache(cacheCfg, rdb)
		}
	}

	authH := handler.NewAuthHandler(cfg, users, tokens)
	listingH := handler.NewListingHandler(listings, categories)
	requestH := handler.NewRequestHandler(requests, listings, queuepublisher.BroadcastToRoom, lg)
	uploadH := handler.NewUploadHandler(listings, images, uploader)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterListings(e, listingH, cfg.JWTSecret, cache)
	router.RegisterRequests(e, requestH, cfg.JWTSecret)
	router.RegisterUploads(e, uploadH, cfg.JWTSecret)

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartChatConsumer(requests, queuepublisher.BroadcastToRoom); err != nil {
				lg.Error().Err(err).Msg("chat consumer stopped")
			}
		}()
	} else {
		lg.Warn().Msg("RABBITMQ_URL not set; chat consumer disabled")
	}

	addr := ":" + cfg.Port
	lg.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
