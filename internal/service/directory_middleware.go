package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// DirectoryMiddleware implements [DECORATOR_PATTERN] to add observability to
// directory lookups without touching resolution logic.
type DirectoryMiddleware struct {
	Next   Directory
	Logger *slog.Logger
}

// NewDirectoryMiddleware creates a new logging decorator for the Directory.
func NewDirectoryMiddleware(next Directory, logger *slog.Logger) Directory {
	return &DirectoryMiddleware{
		Next:   next,
		Logger: logger,
	}
}

// Profile wraps a single profile lookup with outcome logging.
func (m *DirectoryMiddleware) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	start := time.Now()

	res, err := m.Next.Profile(ctx, userID)
	if err != nil {
		m.Logger.Warn("PROFILE_LOOKUP_FAILED",
			"user_id", userID.String(),
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}

// Responders wraps the roster fetch with execution timing and outcome logging.
func (m *DirectoryMiddleware) Responders(ctx context.Context) ([]model.Profile, error) {
	start := time.Now()

	res, err := m.Next.Responders(ctx)

	duration := time.Since(start)
	if err != nil {
		m.Logger.Error("RESPONDER_ROSTER_FAILED",
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("RESPONDER_ROSTER_FETCHED",
			"count", len(res),
			"duration_ms", duration.Milliseconds(),
		)
	}
	return res, err
}
