// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrImplicitSubevent is returned when deleting the implicit subevent.
	ErrImplicitSubevent = errors.New("the implicit subevent cannot be deleted")
	// ErrApplicationPaid is returned when a paid application would be paid
	// again, canceled on its own or stripped of a paid subevent.
	ErrApplicationPaid = errors.New("application is already paid")
	// ErrInvalidState is returned for a target state the application cannot
	// move to, or for an application that is superseded or canceled.
	ErrInvalidState = errors.New("invalid application state")
	// ErrNotAttending is returned when a ticket is checked for a subevent
	// the user does not hold.
	ErrNotAttending = errors.New("user does not attend the subevent")
	// ErrAlreadyRegistered is returned by Register for a user with an
	// active roles application.
	ErrAlreadyRegistered = errors.New("user is already registered")
	// ErrNotRegistered is returned when changing or canceling a
	// registration the user does not have.
	ErrNotRegistered = errors.New("user is not registered")
	// ErrCapacityBelowHolders is returned when a capacity edit would drop
	// below the current number of holders.
	ErrCapacityBelowHolders = errors.New("capacity is lower than the number of current holders")
)

// Actor is whoever triggers an operation. Admin actors bypass registration
// windows and capacity limits.
type Actor struct {
	ID          *uuid.UUID
	Admin       bool
	Permissions []string
}

// Can reports whether the actor was granted perm.
func (a Actor) Can(perm string) bool {
	return slices.Contains(a.Permissions, perm)
}

// Is reports whether the actor is the user id.
func (a Actor) Is(id uuid.UUID) bool {
	return a.ID != nil && *a.ID == id
}

// SystemActor is used by scheduled jobs.
func SystemActor() Actor {
	return Actor{Admin: true, Permissions: model.AllPermissions}
}

// Outbox collects notifications produced inside a unit of work. They are
// delivered only after the unit of work commits.
type Outbox struct {
	msgs []notify.Message
}

// Add queues m.
func (o *Outbox) Add(m notify.Message) {
	o.msgs = append(o.msgs, m)
}

// Messages returns the queued messages.
func (o *Outbox) Messages() []notify.Message {
	return o.msgs
}

// UserService manages registrant accounts.
type UserService struct {
	tx    repository.TxRunner
	clock clock.Clock
}

// NewUserService constructs a UserService.
func NewUserService(tx repository.TxRunner, clk clock.Clock) *UserService {
	return &UserService{tx: tx, clock: clk}
}

func (s *UserService) newUser(req model.CreateUserRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if !isValidEmail(req.Email) {
		return nil, fmt.Errorf("%w: email is not a valid email address", ErrInvalidInput)
	}
	return &model.User{
		ID:        uuid.New(),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Approved:  true,
		CreatedAt: s.clock.Now().UTC(),
	}, nil
}

// Create validates the request and inserts a new user without roles.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	usr, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, usr); err != nil {
			return err
		}
		roles, err := uow.Roles(ctx)
		if err != nil {
			return err
		}
		if id, ok := nonregisteredRole(roles); ok {
			return uow.SetUserRoles(ctx, usr.ID, []uuid.UUID{id})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, usr.ID)
}

// EnsureAdmin creates the admin system role when missing and grants it to
// the user named req.Username, creating that user first if needed. It is
// safe to call on every start.
func (s *UserService) EnsureAdmin(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	candidate, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	var userID uuid.UUID
	err = s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		roles, err := uow.Roles(ctx)
		if err != nil {
			return err
		}
		adminID, ok := systemRole(roles, model.RoleSystemAdmin)
		if !ok {
			adminID = uuid.New()
			err := uow.SaveRole(ctx, model.Role{
				ID:          adminID,
				Name:        "Administrator",
				SystemName:  model.RoleSystemAdmin,
				Fee:         new(int),
				Permissions: model.AllPermissions,
			})
			if err != nil {
				return err
			}
		}

		userID, err = uow.UserIDByUsername(ctx, candidate.Username)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if err := uow.CreateUser(ctx, candidate); err != nil {
				return err
			}
			userID = candidate.ID
		case err != nil:
			return err
		}

		usr, err := uow.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if usr.HasRole(adminID) {
			return nil
		}
		return uow.SetUserRoles(ctx, userID, append(usr.Roles, adminID))
	})
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	return s.Get(ctx, userID)
}

// Application returns one application version.
func (s *UserService) Application(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app *model.Application
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		app, err = uow.GetApplication(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Get returns the user with roles, subevents and application history.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var usr *model.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		usr, err = uow.GetUser(ctx, id)
		return err
	})
	return usr, err
}

// Actor resolves the acting user and the permissions granted by the roles
// they hold. A nil id yields an anonymous actor without permissions; admin
// status comes from the users.manage permission.
func (s *UserService) Actor(ctx context.Context, id *uuid.UUID) (Actor, error) {
	if id == nil {
		return Actor{}, nil
	}
	actor := Actor{ID: id}
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		usr, err := uow.GetUser(ctx, *id)
		if err != nil {
			return err
		}
		roles, err := uow.Roles(ctx)
		if err != nil {
			return err
		}
		for _, perm := range model.AllPermissions {
			if HasPermission(usr, roles, perm) {
				actor.Permissions = append(actor.Permissions, perm)
			}
		}
		actor.Admin = actor.Can(model.PermissionManageUsers)
		return nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return actor, nil
}

// HasPermission reports whether any role held by usr grants perm.
func HasPermission(usr *model.User, roles []model.Role, perm string) bool {
	for _, r := range roles {
		if usr.HasRole(r.ID) && (r.SystemName == model.RoleSystemAdmin || r.HasPermission(perm)) {
			return true
		}
	}
	return false
}

func nonregisteredRole(roles []model.Role) (uuid.UUID, bool) {
	return systemRole(roles, model.RoleSystemNonregistered)
}

func systemRole(roles []model.Role, name string) (uuid.UUID, bool) {
	for _, r := range roles {
		if r.SystemName == name {
			return r.ID, true
		}
	}
	return uuid.Nil, false
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

// maturityDate is the payment deadline for an application created at now.
func maturityDate(now time.Time, graceDays int) time.Time {
	return clock.AddDays(clock.Midnight(now), graceDays)
}

// deliver sends queued notifications. Failures are logged only.
func deliver(ctx context.Context, sender notify.Sender, logger *slog.Logger, out *Outbox) {
	for _, m := range out.Messages() {
		if err := sender.SendTemplated(ctx, m); err != nil {
			logger.ErrorContext(ctx, "notification failed",
				"recipient", m.Recipient,
				"template", string(m.Template),
				"err", err,
			)
		}
	}
}
