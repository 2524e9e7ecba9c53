package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/aryan0dhankhar/rentaladmin/internal/service")

// guard re-runs the gate with the session carried by ctx. Every privileged
// operation calls it before touching a repository, whether or not the
// request came through the admin area middleware.
type guard struct {
	gate  *security.Gate
	audit *audit.Writer
}

func (g guard) require(ctx context.Context, op string) (*security.Principal, error) {
	principal, err := g.gate.Authorize(ctx, security.SessionFromContext(ctx))
	if err != nil {
		reason := security.DenialReason(err)
		metrics.ObserveAuthzDenial("guard", reason)
		g.audit.LogDenied(ctx, "guard", reason, op)
		return nil, err
	}
	return principal, nil
}

// failure converts a repository error into the error returned to callers
func failure(logger *slog.Logger, op, entity, id string, err error) error {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &notFound), errors.As(err, &validation):
		return err
	case errors.Is(err, domain.ErrNotFound):
		return &domain.NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrForbidden):
		return err
	}

	logger.Error("backend operation failed",
		slog.String("op", op),
		slog.String("entity", entity),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return &domain.OperationError{Op: op, Entity: entity, Err: err}
}

// history loads the audit trail shown with an entity's details. A failure
// leaves it empty; the entity itself was already read.
func history(ctx context.Context, w *audit.Writer, logger *slog.Logger, target domain.TargetType, id string) []*domain.AdminAction {
	actions, err := w.History(ctx, target, id)
	if err != nil {
		metrics.ObserveReadDegradation(string(target) + "_history")
		logger.Warn("action history unavailable",
			slog.String("target", string(target)),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return []*domain.AdminAction{}
	}
	if actions == nil {
		actions = []*domain.AdminAction{}
	}
	return actions
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
