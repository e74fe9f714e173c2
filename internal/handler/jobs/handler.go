package jobs

import (
	"context"
	"log/slog"

	"github.com/clinicore/rtc-service/internal/service"
)

// JobHandler consumes channel-delivery jobs off the bus and hands them to the
// gateway deliverer. Business failures bubble up to trigger the retry policy;
// after retries the job lands on the poison topic, never blocking the queue.
type JobHandler struct {
	deliverer service.ChannelDeliverer
	logger    *slog.Logger
}

func NewJobHandler(deliverer service.ChannelDeliverer, logger *slog.Logger) *JobHandler {
	return &JobHandler{deliverer: deliverer, logger: logger}
}

// OnChannelJobV1 forwards a single job through the circuit-breaker-wrapped
// deliverer.
func (h *JobHandler) OnChannelJobV1(ctx context.Context, job *service.ChannelJob) error {
	if err := h.deliverer.Deliver(ctx, *job); err != nil {
		h.logger.Warn("CHANNEL_DELIVERY_FAILED",
			"notification_id", job.NotificationID,
			"recipient_id", job.RecipientID,
			"err", err,
		)
		return err
	}

	h.logger.Debug("CHANNEL_DELIVERY_OK",
		"notification_id", job.NotificationID,
		"priority", job.Priority,
	)
	return nil
}
