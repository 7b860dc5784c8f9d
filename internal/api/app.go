package api

import (
	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/cache"
	"github.com/kalviumcommunity/FocusRoom/internal/engine"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

type App interface {
	Logger() internal.Logger
	Repos() *storage.Repositories
	Engines() *engine.Manager
	Cache() *cache.Cache
}
