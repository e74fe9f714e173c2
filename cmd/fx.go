package cmd

import (
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/config"
	httpsrv "github.com/clinicore/rtc-service/infra/server/http"
	"github.com/clinicore/rtc-service/internal/adapter/platform"
	"github.com/clinicore/rtc-service/internal/adapter/pubsub"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	jobshandler "github.com/clinicore/rtc-service/internal/handler/jobs"
	wshandler "github.com/clinicore/rtc-service/internal/handler/ws"
	"github.com/clinicore/rtc-service/internal/service"
	"github.com/clinicore/rtc-service/internal/storage"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
		),
		platform.Module,
		storage.Module,
		registry.Module,
		service.Module,
		pubsub.Module,
		jobshandler.Module,
		wshandler.Module,
		httpsrv.Module,

		// Reaper tunables follow the config file without a restart.
		fx.Invoke(func(c *config.Config, reaper *registry.Reaper, logger *slog.Logger) {
			c.Watch(logger, func(fresh *config.Config) {
				reaper.Retarget(fresh.Registry.SweepInterval, fresh.Registry.IdleTimeout)
			})
		}),
	)
}

// ProvideLogger builds the process-wide structured logger. JSON to stdout;
// level comes from RTC_LOG_LEVEL when set.
func ProvideLogger() *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("RTC_LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}
