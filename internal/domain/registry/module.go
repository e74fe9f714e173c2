package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config) *Registry {
			return New(
				WithMailboxSize(cfg.Registry.MailboxSize),
				WithSendTimeout(cfg.Registry.SendTimeout),
			)
		},
		func(r *Registry) Registrar { return r },
		NewRooms,
		func(cfg *config.Config, reg *Registry, logger *slog.Logger) *Reaper {
			return NewReaper(reg, logger,
				WithSweepInterval(cfg.Registry.SweepInterval),
				WithIdleTimeout(cfg.Registry.IdleTimeout),
			)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, reg *Registry, reaper *Reaper) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				reaper.Start(context.Background())
				return nil
			},
			OnStop: func(ctx context.Context) error {
				reaper.Stop()
				reg.Shutdown()
				return nil
			},
		})
	}),
)
