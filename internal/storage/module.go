package storage

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/config"
)

var Module = fx.Module("storage",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) (*DB, error) {
			db, err := Open(cfg.Storage.Path, cfg.Storage.OpTimeout)
			if err != nil {
				return nil, err
			}
			result, err := db.Migrate()
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			if result.Changed {
				logger.Info("migrations applied", "version", result.Version)
			} else {
				logger.Info("migrations up to date", "version", result.Version)
			}
			return db, nil
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, db *DB) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return db.Close()
			},
		})
	}),
)
