package service

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

const emergencyFanOutLimit = 16

// Emergency fans urgent alerts out to the responder roster. Every responder
// gets a durable urgent notification regardless of presence; responders with
// a live session additionally get the alert pushed immediately. Fan-out is
// partial-failure tolerant: one unreachable responder never blocks the rest.
type Emergency struct {
	notifier  *Notifications
	directory Directory
	reg       registry.Registrar
	logger    *slog.Logger
}

func NewEmergency(notifier *Notifications, directory Directory, reg registry.Registrar, logger *slog.Logger) *Emergency {
	return &Emergency{
		notifier:  notifier,
		directory: directory,
		reg:       reg,
		logger:    logger,
	}
}

// Trigger raises an alert on behalf of callerID. Returns the number of
// responders for whom a durable notification was created. The caller is
// excluded from the fan-out.
func (s *Emergency) Trigger(ctx context.Context, callerID uuid.UUID, message, location, severity string) (int, error) {
	if strings.TrimSpace(message) == "" {
		return 0, model.ErrValidation("emergency alert requires a message")
	}
	if severity == "" {
		severity = "critical"
	}

	responders, err := s.directory.Responders(ctx)
	if err != nil {
		return 0, model.WrapError(model.KindTransientStorage, "responder roster unavailable", err)
	}

	alertID := uuid.New()
	ev := event.NewEmergencyAlert(alertID, callerID, message, location, severity)

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(emergencyFanOutLimit)

	for _, r := range responders {
		if r.UserID == callerID {
			continue
		}
		r := r
		g.Go(func() error {
			n := &model.Notification{
				RecipientID: r.UserID,
				SenderID:    callerID,
				Kind:        model.NotificationEmergencyAlert,
				Title:       "Emergency alert",
				Body:        message,
				Priority:    model.PriorityUrgentNotification,
				RelatedRefs: map[string]string{"alert_id": alertID.String()},
			}
			if location != "" {
				n.RelatedRefs["location"] = location
			}
			if _, err := s.notifier.Enqueue(gctx, n); err != nil {
				s.logger.Error("emergency fan-out failed",
					slog.String("alert_id", alertID.String()),
					slog.String("recipient_id", r.UserID.String()),
					slog.Any("error", err),
				)
				return nil
			}
			created.Add(1)
			s.reg.SendTo(r.UserID, ev)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("emergency alert fanned out",
		slog.String("alert_id", alertID.String()),
		slog.String("caller_id", callerID.String()),
		slog.String("severity", severity),
		slog.Int64("notified", created.Load()),
	)
	return int(created.Load()), nil
}
