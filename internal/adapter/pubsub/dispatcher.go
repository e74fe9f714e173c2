package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clinicore/rtc-service/internal/service"
)

// TopicChannelJobs carries notification jobs to the secondary-channel
// consumer (and, behind AMQP, to external worker fleets).
const TopicChannelJobs = "notification.channel_job.v1"

// Interface guard
var _ service.ChannelDispatcher = (*JobDispatcher)(nil)

// JobDispatcher pushes channel-delivery jobs onto the bus. It keeps the
// notification service agnostic of the transport implementation.
type JobDispatcher struct {
	publisher message.Publisher
}

func NewJobDispatcher(bus *Bus) *JobDispatcher {
	return &JobDispatcher{publisher: bus.Publisher}
}

func (d *JobDispatcher) Dispatch(ctx context.Context, job service.ChannelJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("recipient_id", job.RecipientID.String())
	msg.Metadata.Set("priority", string(job.Priority))

	if err := d.publisher.Publish(TopicChannelJobs, msg); err != nil {
		return fmt.Errorf("job dispatcher: publish to %s: %w", TopicChannelJobs, err)
	}
	return nil
}
