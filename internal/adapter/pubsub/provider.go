package pubsub

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/clinicore/rtc-service/config"
)

// Bus pairs the publisher and subscriber of the channel-delivery job
// transport. Both sides must come from the same provider: the in-process
// transport only routes between its own halves.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewBus builds the job transport. With an AMQP URL configured the bus rides
// a durable broker exchange so channel jobs survive restarts; otherwise an
// in-process go-channel transport serves single-node deployments.
func NewBus(cfg *config.Config, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if cfg.Channels.AMQPURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wmLogger)
		return &Bus{Publisher: ch, Subscriber: ch}, nil
	}

	amqpConfig := amqp.NewDurablePubSubConfig(
		cfg.Channels.AMQPURL,
		amqp.GenerateQueueNameTopicNameWithSuffix("rtc-channel-jobs"),
	)
	amqpConfig.Exchange.GenerateName = func(string) string {
		return cfg.Channels.Exchange
	}

	pub, err := amqp.NewPublisher(amqpConfig, wmLogger)
	if err != nil {
		return nil, err
	}
	sub, err := amqp.NewSubscriber(amqpConfig, wmLogger)
	if err != nil {
		pub.Close()
		return nil, err
	}
	return &Bus{Publisher: pub, Subscriber: sub}, nil
}

// Close releases both transport halves.
func (b *Bus) Close() error {
	err := b.Publisher.Close()
	if serr := b.Subscriber.Close(); err == nil {
		err = serr
	}
	return err
}
