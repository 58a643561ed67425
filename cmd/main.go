package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/tweet-graph/internal/auth"
	"github.com/weiawesome/tweet-graph/internal/config"
	"github.com/weiawesome/tweet-graph/internal/handler"
	"github.com/weiawesome/tweet-graph/internal/kv"
	"github.com/weiawesome/tweet-graph/internal/reconciler"
	"github.com/weiawesome/tweet-graph/internal/service"
	"github.com/weiawesome/tweet-graph/internal/store"
	"github.com/weiawesome/tweet-graph/pkg/jwt"
	pkglog "github.com/weiawesome/tweet-graph/pkg/log"
	"github.com/weiawesome/tweet-graph/pkg/middleware"
	"github.com/weiawesome/tweet-graph/pkg/pubsub"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "tweet-graph",
	})
	logger := pkglog.L()

	// 3. Connect to Redis
	redisStore, err := kv.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 4. Stores over the legacy key layout
	keys := store.NewKeyspace(cfg.Store.KeyPrefix)
	index := store.NewIdentityIndex(redisStore, keys)
	users := store.NewUserStore(redisStore, keys)
	graph := store.NewGraphStore(redisStore, keys)
	tweets := store.NewTweetStore(redisStore, keys)

	// 5. Service, with events on the same connection
	opts := []service.Option{service.WithBcryptCost(cfg.Auth.BcryptCost)}
	if cfg.Events.Enabled {
		events := pubsub.NewRedisPublisher(redisStore.Client())
		opts = append(opts, service.WithPublisher(events, cfg.Events.Channel))
		logger.Info().Str("channel", cfg.Events.Channel).Msg("event publishing enabled")
	}
	svc := service.NewSocialGraphService(index, users, graph, tweets, opts...)

	// 6. Tokens and authentication
	tokens, err := jwt.NewManager(cfg.Auth.AccessDuration, cfg.Auth.RefreshDuration, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authenticator := auth.NewAuthenticator(index, users, tokens)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tokens.CleanupExpiredRevocations()
			}
		}
	}()

	// 7. Init reconciler and start
	rec := reconciler.New(users, graph, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("batch_size", cfg.Reconciler.BatchSize).Msg("reconciler started")

	// 8. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(svc, authenticator, authMiddleware)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("tweet-graph starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 9. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Drain HTTP before stopping background work.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		rec.Stop()
		<-rec.Done()
		cancel()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("tweet-graph stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
