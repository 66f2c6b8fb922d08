package main // Entry point package for the HTTP API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/database"
	"github.com/iliyamo/natours-api/internal/handler"
	"github.com/iliyamo/natours-api/internal/middleware"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/router"
	"github.com/iliyamo/natours-api/internal/service"
	"github.com/iliyamo/natours-api/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins
	cfg := config.Load()
	logger := config.NewLogger(cfg.Env)

	db, err := database.Open(cfg.DSN())
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(cfg.DSN(), logger); err != nil {
		logger.Error("migrate database", "err", err)
		os.Exit(1)
	}

	// Revocations always land in MySQL.  Redis, when reachable, fronts them
	// and backs the response cache and rate limiter, which are pass-through
	// without it.
	rdb := config.NewRedisClient()
	var revoked utils.RevocationStore = repository.NewTokenRepo(db)
	if rdb != nil {
		defer rdb.Close()
		revoked = repository.NewCachedRevocations(revoked,
			repository.NewRedisRevocations(rdb, os.Getenv("REVOKED_PREFIX")), logger)
	} else {
		logger.Warn("redis unavailable; response cache and rate limit disabled")
	}

	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, revoked)
	creds := utils.NewCredentials(cfg.BcryptCost, cfg.ResetTokenTTL)
	mail := service.NewMailPublisher(cfg.Mail, logger)
	defer mail.Close()

	users := repository.NewUserRepo(db)
	tours := repository.NewTourRepo(db)
	reviews := repository.NewReviewRepo(db)

	ratings := service.NewRatingAggregator(reviews, tours, logger)
	tourFactory := service.NewTourFactory(tours, reviews, users)
	reviewFactory := service.NewReviewFactory(reviews, users, ratings)
	userFactory := service.NewUserFactory(users, reviews, ratings)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsProduction(), logger)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("10K"))

	cacheCfg := config.LoadCacheConfig()
	guards := router.Guards{
		Protect:    middleware.Protect(tokens, users),
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.InvalidateCache(cacheCfg, rdb),
	}

	router.RegisterRoutes(e, db)
	api := router.API(e, guards)
	auth := handler.NewAuthHandler(cfg, users, tokens, creds, mail, logger)
	router.RegisterUsers(api, guards, auth, handler.NewUserHandler(userFactory, users))
	reviewHandler := handler.NewReviewHandler(reviewFactory)
	router.RegisterTours(api, guards, handler.NewTourHandler(tourFactory, tours), reviewHandler)
	router.RegisterReviews(api, guards, reviewHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
