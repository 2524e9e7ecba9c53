package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
)

// UserService handles admin operations on profiles
type UserService struct {
	profiles    domain.ProfileRepository
	tx          domain.Transactor
	audit       *audit.Writer
	guard       guard
	maxPageSize int
	logger      *slog.Logger
	now         func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	profiles domain.ProfileRepository,
	tx domain.Transactor,
	gate *security.Gate,
	auditWriter *audit.Writer,
	maxPageSize int,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		profiles:    profiles,
		tx:          tx,
		audit:       auditWriter,
		guard:       guard{gate: gate, audit: auditWriter},
		maxPageSize: maxPageSize,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns one page of profiles, optionally filtered by role
func (s *UserService) List(ctx context.Context, params domain.ListParams) (domain.Page[*domain.Profile], error) {
	ctx, span := tracer.Start(ctx, "UserService.List")
	defer span.End()

	var empty domain.Page[*domain.Profile]
	if _, err := s.guard.require(ctx, "users.list"); err != nil {
		return empty, err
	}

	params, err := params.Normalize(s.maxPageSize)
	if err != nil {
		return empty, err
	}
	var filter domain.ProfileFilter
	if params.Filter != "" {
		if filter.Role, err = domain.ParseRole(params.Filter); err != nil {
			return empty, err
		}
	}

	total, err := s.profiles.Count(ctx, domain.ProfileFilter{})
	if err != nil {
		return empty, failure(s.logger, "fetch", "users", "", err)
	}
	matching := total
	if filter.Role != "" {
		if matching, err = s.profiles.Count(ctx, filter); err != nil {
			return empty, failure(s.logger, "fetch", "users", "", err)
		}
	}

	items, err := s.profiles.List(ctx, filter, params.Offset(), params.PageSize)
	if err != nil {
		return empty, failure(s.logger, "fetch", "users", "", err)
	}

	return domain.NewPage(items, params, total, matching), nil
}

// Get returns one profile
func (s *UserService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "UserService.Get")
	defer span.End()

	if _, err := s.guard.require(ctx, "users.get"); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, failure(s.logger, "fetch", "user", id, err)
	}
	return profile, nil
}

// UpdateRole changes a user's role and records the new role in the action details
func (s *UserService) UpdateRole(ctx context.Context, id, role string) error {
	ctx, span := tracer.Start(ctx, "UserService.UpdateRole")
	defer span.End()

	principal, err := s.guard.require(ctx, "users.update_role")
	if err != nil {
		return err
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.UpdateRole(ctx, id, r, s.now().UTC()); err != nil {
			return err
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.ActionUserRoleUpdated,
			TargetType: domain.TargetUser,
			TargetID:   id,
			Details:    domain.Details{"new_role": string(r)},
		})
	})
	if err != nil {
		return failure(s.logger, "update", "user role", id, err)
	}
	return nil
}

// UpdateStatus changes a user's account status; reason is kept as the action notes
func (s *UserService) UpdateStatus(ctx context.Context, id, status string, reason *string) error {
	ctx, span := tracer.Start(ctx, "UserService.UpdateStatus")
	defer span.End()

	principal, err := s.guard.require(ctx, "users.update_status")
	if err != nil {
		return err
	}

	st, err := domain.ParseUserStatus(status)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.UpdateStatus(ctx, id, st, s.now().UTC()); err != nil {
			return err
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.StatusActionType(domain.TargetUser, string(st), false),
			TargetType: domain.TargetUser,
			TargetID:   id,
			Notes:      reason,
		})
	})
	if err != nil {
		return failure(s.logger, "update", "user status", id, err)
	}
	return nil
}

// Delete removes a profile and records the action
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "UserService.Delete")
	defer span.End()

	principal, err := s.guard.require(ctx, "users.delete")
	if err != nil {
		return err
	}
	if id == principal.UserID() {
		return &domain.ValidationError{Field: "id", Message: "admins cannot delete their own profile"}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.DeletedActionType(domain.TargetUser),
			TargetType: domain.TargetUser,
			TargetID:   id,
		})
	})
	if err != nil {
		return failure(s.logger, "delete", "user", id, err)
	}
	return nil
}
