package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/cache"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/config"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/handler"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/hub"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/identity"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/service"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/store"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/database"
	pkglog "github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "live-share",
	})
	logger := pkglog.L()

	// Share lookup backend
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db, &domain.ShareModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	shareStore := store.NewGormShareStore(db)

	// Share metadata cache
	var shareCache cache.ShareCache
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisShareCache(cache.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		shareCache = rc
		logger.Info().Str("addr", cfg.Redis.Address).Msg("share cache connected")
	}

	// Room registry and broadcast engine
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	resolver := identity.NewResolver(cfg.Auth.JWTSecret)
	liveSvc := service.NewLiveService(wsHub, shareStore, shareCache, cfg.Cache.TTL)

	wsHandler := handler.NewWSHandler(wsHub, liveSvc, resolver, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(liveSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	httpHandler.RegisterRoutes(r, wsHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("driver", cfg.Database.Driver).Msg("live-share service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("stopped")
}
