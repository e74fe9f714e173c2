package jobs

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/internal/service"
)

var Module = fx.Module("jobs-handler",
	fx.Provide(
		NewJobHandler,
		NewWatermillRouter,
	),

	// [DECORATION_LAYER] The raw gateway client gets the circuit breaker here
	// so only the bus consumer pays the fail-fast policy.
	fx.Decorate(func(next service.ChannelDeliverer, logger *slog.Logger) service.ChannelDeliverer {
		return NewBreakerDeliverer(next, logger)
	}),

	fx.Invoke(RegisterHandlers),

	fx.Invoke(runRouter),
)

// runRouter drives the consumer loop under the fx lifecycle. Run blocks until
// Close, so it gets its own goroutine; startup waits for the running signal.
func runRouter(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("JOB_ROUTER_STOPPED", "err", err)
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
}
