package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// Identity verifies the opaque token presented at connect time. The core
// never half-admits a connection: verification either yields an active
// principal within the auth window or the handshake is rejected.
type Identity interface {
	Verify(ctx context.Context, token string) (model.Principal, error)
}

// Directory resolves user profiles and the responder roster from the clinic
// platform. Used for notification rendering and emergency fan-out.
type Directory interface {
	Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
	Responders(ctx context.Context) ([]model.Profile, error)
}

// ChannelJob is the payload handed to secondary delivery channels
// (email/sms/push) when a recipient could not be reached live.
type ChannelJob struct {
	NotificationID uuid.UUID                  `json:"notification_id"`
	RecipientID    uuid.UUID                  `json:"recipient_id"`
	Kind           model.NotificationKind     `json:"kind"`
	Title          string                     `json:"title"`
	Body           string                     `json:"body"`
	Priority       model.NotificationPriority `json:"priority"`
}

// ChannelDispatcher enqueues a job onto the channel-delivery bus. Dispatch
// failures are logged by callers and never propagate to message senders.
type ChannelDispatcher interface {
	Dispatch(ctx context.Context, job ChannelJob) error
}

// ChannelDeliverer is the outermost collaborator actually talking to
// email/sms/push providers. Invoked by the job consumer, behind a circuit
// breaker; its failure is non-fatal by contract.
type ChannelDeliverer interface {
	Deliver(ctx context.Context, job ChannelJob) error
}
