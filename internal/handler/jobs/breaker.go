package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/clinicore/rtc-service/internal/service"
)

// Interface guard
var _ service.ChannelDeliverer = (*BreakerDeliverer)(nil)

// BreakerDeliverer shields the channel gateway behind a circuit breaker. When
// the gateway degrades, jobs fail fast into the retry/poison pipeline instead
// of piling up consumer goroutines on a dead dependency.
type BreakerDeliverer struct {
	next    service.ChannelDeliverer
	breaker *gobreaker.CircuitBreaker[any]
}

func NewBreakerDeliverer(next service.ChannelDeliverer, logger *slog.Logger) *BreakerDeliverer {
	settings := gobreaker.Settings{
		Name:    "channel-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BREAKER_STATE_CHANGED",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerDeliverer{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerDeliverer) Deliver(ctx context.Context, job service.ChannelJob) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Deliver(ctx, job)
	})
	return err
}
