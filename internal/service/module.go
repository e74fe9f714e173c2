package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/config"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		NewPresence,
		NewRoomManager,
		NewMessages,
		NewReceipts,
		NewTyping,
		NewNotifications,
		NewEmergency,
	),

	// [DECORATION_LAYER] Intercept Directory to add caching and
	// cross-cutting observability
	fx.Decorate(func(orig Directory, cfg *config.Config, logger *slog.Logger) Directory {
		cached := NewCachedDirectory(orig, cfg.Platform.CacheSize, cfg.Platform.CacheTTL)
		return &DirectoryMiddleware{
			Next:   cached,
			Logger: logger,
		}
	}),

	// The reaper evicts through the presence path so idle disconnects
	// announce user_offline like any other disconnect.
	fx.Invoke(func(reaper *registry.Reaper, presence *Presence) {
		reaper.SetEvictFunc(presence.EvictIdle)
	}),
)
