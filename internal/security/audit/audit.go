package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/google/uuid"
)

// Writer appends AdminAction records and mirrors each one to the log
type Writer struct {
	repo   domain.AdminActionRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(repo domain.AdminActionRepository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, logger: logger, now: time.Now}
}

// Record appends actions. When ctx carries a transaction the rows join it and
// the audit log lines and metrics are emitted only after it commits.
// Missing ids and timestamps are filled in.
func (w *Writer) Record(ctx context.Context, actions ...*domain.AdminAction) error {
	if len(actions) == 0 {
		return nil
	}

	now := w.now().UTC()
	for _, a := range actions {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
	}

	if err := w.repo.Append(ctx, actions...); err != nil {
		return fmt.Errorf("failed to record admin actions: %w", err)
	}

	requestID := security.RequestIDFromContext(ctx)
	domain.AfterCommit(ctx, func() { w.emit(requestID, actions) })
	return nil
}

func (w *Writer) emit(requestID string, actions []*domain.AdminAction) {
	for _, a := range actions {
		metrics.ObserveAdminAction(a.ActionType)
		w.logger.Info("audit",
			slog.String("action", a.ActionType),
			slog.String("resource", string(a.TargetType)),
			slog.String("resource_id", a.TargetID),
			slog.String("admin_id", a.AdminID),
			slog.String("request_id", requestID),
			slog.Time("timestamp", a.CreatedAt),
		)
	}
}

// History returns the recorded actions for one entity, oldest first
func (w *Writer) History(ctx context.Context, target domain.TargetType, targetID string) ([]*domain.AdminAction, error) {
	actions, err := w.repo.ListByTarget(ctx, target, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action history: %w", err)
	}
	return actions, nil
}

// LogRequest logs an admin mutation as it enters the system
func (w *Writer) LogRequest(ctx context.Context, adminID, method, path string) {
	w.logger.Info("audit",
		slog.String("action", "admin_request"),
		slog.String("method", method),
		slog.String("path", path),
		slog.String("admin_id", adminID),
		slog.String("status", "initiated"),
		slog.String("request_id", security.RequestIDFromContext(ctx)),
	)
}

// LogDenied logs a gate denial. Denials are not persisted.
func (w *Writer) LogDenied(ctx context.Context, layer, reason, target string) {
	w.logger.Warn("audit",
		slog.String("action", "access_denied"),
		slog.String("layer", layer),
		slog.String("reason", reason),
		slog.String("target", target),
		slog.String("status", "denied"),
		slog.String("request_id", security.RequestIDFromContext(ctx)),
	)
}
