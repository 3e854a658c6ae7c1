// Package repository implements persistence for the seminar registration
// system. All reads and writes go through a UnitOfWork obtained from
// TxRunner.RunInTx so that a multi-entity change either commits as a whole
// or not at all.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrRoleInUse is returned when deleting a role some user still holds.
var ErrRoleInUse = errors.New("role is assigned to users")

// ErrSubeventInUse is returned when deleting a subevent some user still holds.
var ErrSubeventInUse = errors.New("subevent is assigned to users")

// ErrDuplicate is returned on unique constraint violations (role name,
// username, email).
var ErrDuplicate = errors.New("already exists")

// RoleStore persists roles and their relation edges.
type RoleStore interface {
	Roles(ctx context.Context) ([]model.Role, error)
	// LockRoles takes row locks on the given roles and returns how many
	// users currently hold each of them.
	LockRoles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
	CountRoleHolders(ctx context.Context, id uuid.UUID) (int, error)
	// SaveRole inserts or updates r. Incompatible edges are stored in both
	// directions.
	SaveRole(ctx context.Context, r model.Role) error
	DeleteRole(ctx context.Context, id uuid.UUID) error
}

// SubeventStore persists subevents.
type SubeventStore interface {
	Subevents(ctx context.Context) ([]model.Subevent, error)
	SubeventsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Subevent, error)
	ImplicitSubevent(ctx context.Context) (model.Subevent, error)
	LockSubevents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
	SaveSubevent(ctx context.Context, s model.Subevent) error
	DeleteSubevent(ctx context.Context, id uuid.UUID) error
}

// UserStore persists registrants and their current assignment.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	// GetUser loads the user with roles, subevents and application
	// history, locking the user row for the rest of the transaction.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UserIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
	SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	SetUserSubevents(ctx context.Context, userID uuid.UUID, subeventIDs []uuid.UUID) error
	SetUserApproved(ctx context.Context, userID uuid.UUID, approved bool) error
	UsersWithWaitingApplication(ctx context.Context) ([]uuid.UUID, error)
}

// ApplicationStore persists application records.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error)
	InsertApplication(ctx context.Context, a *model.Application) error
	UpdateApplication(ctx context.Context, a *model.Application) error
}

// TicketCheckStore persists admission scans. Append-only.
type TicketCheckStore interface {
	InsertTicketCheck(ctx context.Context, c *model.TicketCheck) error
	TicketChecks(ctx context.Context, userID, subeventID uuid.UUID) ([]model.TicketCheck, error)
}

// UnitOfWork is the set of operations available inside one transaction.
type UnitOfWork interface {
	RoleStore
	SubeventStore
	UserStore
	ApplicationStore
	TicketCheckStore
}

// TxRunner runs fn inside a transaction. If fn returns an error (or
// panics) every change made through uow is rolled back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
