package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/api"
	"github.com/kalviumcommunity/FocusRoom/internal/auth"
	"github.com/kalviumcommunity/FocusRoom/internal/cache"
	"github.com/kalviumcommunity/FocusRoom/internal/config"
	"github.com/kalviumcommunity/FocusRoom/internal/engine"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

type app struct {
	logger  internal.Logger
	repos   *storage.Repositories
	engines *engine.Manager
	cache   *cache.Cache
}

func (a *app) Logger() internal.Logger      { return a.logger }
func (a *app) Repos() *storage.Repositories { return a.repos }
func (a *app) Engines() *engine.Manager     { return a.engines }
func (a *app) Cache() *cache.Cache          { return a.cache }

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.LogLevel)
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	repos, closer, err := newRepositories(cfg, logger)
	if err != nil {
		logger.Errorf("failed to init storage: %v", err)
		os.Exit(1)
	}
	defer closer.Close()

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.New(cfg.RedisAddr, cfg.RedisPassword, 30*time.Second, logger)
		if err != nil {
			logger.Errorf("failed to connect to redis: %v", err)
			os.Exit(1)
		}
		defer c.Close()
	}

	provider := newAuthProvider(cfg, logger)
	engines := engine.NewManager(repos, logger)
	defer engines.Close()

	a := &app{logger: logger, repos: repos, engines: engines, cache: c}
	router := api.NewRouter(a, auth.Middleware(provider, repos.Profiles, logger))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("server listening on :%s (storage=%s auth=%s)", cfg.Port, cfg.StorageBackend, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}
}

func newRepositories(cfg *config.Config, logger internal.Logger) (*storage.Repositories, io.Closer, error) {
	switch cfg.StorageBackend {
	case "postgres":
		return storage.NewPostgresRepositories(cfg.PostgresDSN, cfg.WatchInterval, logger)
	case "mongo":
		return storage.NewMongoRepositories(cfg.MongoURI, cfg.MongoDatabase, cfg.WatchInterval, logger)
	default:
		return storage.NewFileRepositories(cfg.DataDir, logger)
	}
}

func newAuthProvider(cfg *config.Config, logger internal.Logger) auth.Provider {
	switch cfg.AuthMode {
	case "jwt":
		return auth.NewJWTProvider(cfg.JWTSecret, logger)
	case "remote":
		return auth.NewRemoteProvider(cfg.AuthServiceURL, logger)
	default:
		return auth.NewLocalProvider(cfg.LocalToken, logger)
	}
}
