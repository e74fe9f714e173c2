package pubsub

import (
	"context"

	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/internal/service"
)

var Module = fx.Module(
	"pubsub",

	fx.Provide(
		NewBus,
		fx.Annotate(
			NewJobDispatcher,
			fx.As(new(service.ChannelDispatcher)),
		),
	),

	fx.Invoke(func(lc fx.Lifecycle, bus *Bus) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return bus.Close()
			},
		})
	}),
)
