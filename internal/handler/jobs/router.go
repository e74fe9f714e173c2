package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/clinicore/rtc-service/internal/adapter/pubsub"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicChannelJobs = pubsub.TopicChannelJobs

	// ------------------- POISON --------------------------------
	ChannelJobsPoisonTopic = "notification.channel_job.v1.poison"
)

func NewWatermillRouter(logger *slog.Logger) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
}

// [REGISTRATION_PIPELINE]
func RegisterHandlers(router *message.Router, bus *pubsub.Bus, h *JobHandler) error {
	poison, err := middleware.PoisonQueue(bus.Publisher, ChannelJobsPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_CHANNEL_JOB", TopicChannelJobs, Bind(h, h.OnChannelJobV1)},

		// [ARCHITECTURAL_PLACEHOLDERS]
		// Add new bus listeners here by following this table-driven pattern.
	}

	for _, c := range configs {
		router.AddConsumerHandler(c.name, c.topic, bus.Subscriber, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("JOB_PIPELINE_READY", "topic", TopicChannelJobs)
	return nil
}
