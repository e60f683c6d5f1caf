package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jason-s-yu/whot/internal/auth"
	"github.com/jason-s-yu/whot/internal/cache"
	"github.com/jason-s-yu/whot/internal/config"
	"github.com/jason-s-yu/whot/internal/database"
	"github.com/jason-s-yu/whot/internal/game"
	"github.com/jason-s-yu/whot/internal/handlers"
	"github.com/jason-s-yu/whot/internal/logging"
	"github.com/jason-s-yu/whot/internal/registry"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration")
	}
	log := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis and Postgres are optional; without them actions are not logged
	// and results are not archived.
	var actions game.ActionLog
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, action log disabled")
		} else {
			defer rdb.Close()
			actions = cache.NewRedisActionLog(rdb)
			log.Info("Action log enabled")
		}
	}

	var archive registry.MatchArchive
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, match archive disabled")
		} else if err := db.Migrate(ctx); err != nil {
			log.WithError(err).Error("Migrations failed, match archive disabled")
			db.Close()
		} else {
			defer db.Close()
			archive = db
			log.Info("Match archive enabled")
		}
	}

	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
	} else {
		log.Warn("JWT_SECRET not set, session tokens disabled")
	}

	hub := handlers.NewHub(log)
	reg := registry.New(registry.Options{
		DefaultMaxPlayers: cfg.DefaultMaxPlayers,
		TurnDuration:      cfg.TurnDuration,
		ReconnectWindow:   cfg.ReconnectWindow,
		IdleTimeout:       cfg.RoomIdleTimeout,
		DisconnectTimeout: cfg.DisconnectTimeout,
		SweepInterval:     cfg.SweepInterval,
		Notifier:          hub,
		ActionLog:         actions,
		Archive:           archive,
		Logger:            log,
	})
	go reg.Run(ctx)

	dispatcher := handlers.NewDispatcher(handlers.DispatcherOptions{
		Registry:               reg,
		Notifier:               hub,
		Tokens:                 tokens,
		RequireSessionToken:    cfg.RequireSessionToken,
		DefaultMaxParticipants: cfg.DefaultMaxParticipants,
		Logger:                 log,
	})
	server := handlers.NewServer(hub, dispatcher, reg, handlers.ServerOptions{
		OriginPatterns: originHosts(cfg.CORSOrigins),
		RatePerSec:     cfg.RateLimitPerSec,
		RateBurst:      cfg.RateLimitBurst,
	}, log)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin"},
		AllowCredentials: true,
	}))
	server.RegisterRoutes(router)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.WithField("port", cfg.Port).Info("Whot server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Couldn't start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	for _, code := range reg.RoomCodes() {
		reg.DeleteRoom(code)
	}
}

// originHosts turns CORS origins into the host patterns the websocket
// handshake checks.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else {
			out = append(out, o)
		}
	}
	return out
}
