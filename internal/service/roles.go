package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

// RoleService administers roles and their relations.
type RoleService struct {
	tx     repository.TxRunner
	logger *slog.Logger
}

// NewRoleService constructs a RoleService.
func NewRoleService(tx repository.TxRunner, logger *slog.Logger) *RoleService {
	return &RoleService{tx: tx, logger: logger}
}

// List returns all roles ordered by name.
func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		roles, err = uow.Roles(ctx)
		return err
	})
	return roles, err
}

// Get returns a single role.
func (s *RoleService) Get(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		g, err := loadGraph(ctx, uow)
		if err != nil {
			return err
		}
		role, err = g.Get(id)
		if err != nil {
			return fmt.Errorf("role %s: %w", id, repository.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Create validates and inserts a new role.
func (s *RoleService) Create(ctx context.Context, req model.RoleRequest) (*model.Role, error) {
	role, err := roleFromRequest(uuid.New(), req)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, role, false); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "role created", "role_id", role.ID, "name", role.Name)
	return &role, nil
}

// Update replaces a role. The new relations must not make any role
// require a role it is incompatible with, and the capacity may not drop
// below the number of current holders.
func (s *RoleService) Update(ctx context.Context, id uuid.UUID, req model.RoleRequest) (*model.Role, error) {
	role, err := roleFromRequest(id, req)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, role, true); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *RoleService) save(ctx context.Context, role model.Role, existing bool) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		g, err := loadGraph(ctx, uow)
		if err != nil {
			return err
		}
		if existing {
			if !g.Has(role.ID) {
				return fmt.Errorf("role %s: %w", role.ID, repository.ErrNotFound)
			}
			holders, err := uow.LockRoles(ctx, []uuid.UUID{role.ID})
			if err != nil {
				return err
			}
			if role.Capacity != nil && holders[role.ID] > *role.Capacity {
				return ErrCapacityBelowHolders
			}
		}

		v := eligibility.New(g.With(role))
		if err := v.ValidateRoleEdit(role.ID, role.IncompatibleRoles, role.RequiredRoles); err != nil {
			return err
		}
		return uow.SaveRole(ctx, role)
	})
}

// Delete removes a role nobody holds.
func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		return uow.DeleteRole(ctx, id)
	})
}

func roleFromRequest(id uuid.UUID, req model.RoleRequest) (model.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if req.Capacity != nil && *req.Capacity < 0 {
		return model.Role{}, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	if req.Fee != nil && *req.Fee < 0 {
		return model.Role{}, fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if req.RegisterableFrom != nil && req.RegisterableTo != nil && req.RegisterableTo.Before(*req.RegisterableFrom) {
		return model.Role{}, fmt.Errorf("%w: registration window ends before it starts", ErrInvalidInput)
	}
	return model.Role{
		ID:                        id,
		Name:                      name,
		SystemName:                strings.TrimSpace(req.SystemName),
		Registerable:              req.Registerable,
		RegisterableFrom:          req.RegisterableFrom,
		RegisterableTo:            req.RegisterableTo,
		Capacity:                  req.Capacity,
		Fee:                       req.Fee,
		IncompatibleRoles:         dedup(req.IncompatibleRoles),
		RequiredRoles:             dedup(req.RequiredRoles),
		Permissions:               req.Permissions,
		Pages:                     req.Pages,
		ApprovedAfterRegistration: req.ApprovedAfterRegistration,
	}, nil
}

func dedup(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if !containsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}
