// Package model defines the core domain types for the seminar registration system.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Well-known role system names.
const (
	RoleSystemAdmin         = "admin"
	RoleSystemNonregistered = "nonregistered"
)

// Permission strings are "<resource>.<action>".
const (
	PermissionManageUsers    = "users.manage"
	PermissionManageACL      = "acl.manage"
	PermissionManagePayments = "payments.manage"
	PermissionChoosePrograms = "program.choose"
	PermissionManagePrograms = "program.manage"
)

// AllPermissions lists every permission the API checks.
var AllPermissions = []string{
	PermissionManageUsers,
	PermissionManageACL,
	PermissionManagePayments,
	PermissionChoosePrograms,
	PermissionManagePrograms,
}

// Role is a registrable participant category (e.g. "attendee", "lector").
type Role struct {
	ID                        uuid.UUID   `json:"id"`
	Name                      string      `json:"name"`
	SystemName                string      `json:"system_name,omitempty"`
	Registerable              bool        `json:"registerable"`
	RegisterableFrom          *time.Time  `json:"registerable_from,omitempty"`
	RegisterableTo            *time.Time  `json:"registerable_to,omitempty"`
	Capacity                  *int        `json:"capacity,omitempty"`
	Fee                       *int        `json:"fee,omitempty"`
	IncompatibleRoles         []uuid.UUID `json:"incompatible_roles"`
	RequiredRoles             []uuid.UUID `json:"required_roles"`
	Permissions               []string    `json:"permissions"`
	Pages                     []string    `json:"pages"`
	ApprovedAfterRegistration bool        `json:"approved_after_registration"`
}

// FeeFromSubevents reports whether the role's price is the sum of the
// chosen subevents rather than a fixed amount.
func (r *Role) FeeFromSubevents() bool {
	return r.Fee == nil
}

// HasPermission reports whether the role grants perm.
func (r *Role) HasPermission(perm string) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Subevent is a separately priced part of the seminar.
type Subevent struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Fee              int        `json:"fee"`
	Capacity         *int       `json:"capacity,omitempty"`
	Implicit         bool       `json:"implicit"`
	RegisterableFrom *time.Time `json:"registerable_from,omitempty"`
	RegisterableTo   *time.Time `json:"registerable_to,omitempty"`
}

// User is a registrant with its current role/subevent assignment.
type User struct {
	ID           uuid.UUID     `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Approved     bool          `json:"approved"`
	Roles        []uuid.UUID   `json:"roles"`
	Subevents    []uuid.UUID   `json:"subevents"`
	Applications []Application `json:"applications,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// HasSubevent reports whether the user currently holds the subevent.
func (u *User) HasSubevent(id uuid.UUID) bool {
	return containsID(u.Subevents, id)
}

// HasRole reports whether the user currently holds the role.
func (u *User) HasRole(id uuid.UUID) bool {
	return containsID(u.Roles, id)
}

// ActiveApplications returns applications not yet superseded by a newer version.
func (u *User) ActiveApplications() []Application {
	var out []Application
	for _, a := range u.Applications {
		if a.ValidTo == nil {
			out = append(out, a)
		}
	}
	return out
}

// WaitingForPayment returns active applications of the given kind that
// still wait for payment. An empty kind matches both kinds.
func (u *User) WaitingForPayment(kind ApplicationKind) []Application {
	var out []Application
	for _, a := range u.ActiveApplications() {
		if a.State != StateWaitingForPayment {
			continue
		}
		if kind != "" && a.Kind != kind {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ApplicationKind distinguishes role applications from subevent applications.
type ApplicationKind string

const (
	KindRoles     ApplicationKind = "roles"
	KindSubevents ApplicationKind = "subevents"
)

// ApplicationState is the payment/cancellation state of an application.
type ApplicationState string

const (
	StateNew               ApplicationState = "NEW"
	StateWaitingForPayment ApplicationState = "WAITING_FOR_PAYMENT"
	StatePaid              ApplicationState = "PAID"
	StateCanceled          ApplicationState = "CANCELED"
	StateCanceledNotPaid   ApplicationState = "CANCELED_NOT_PAID"
)

// Canceled reports whether s is one of the terminal cancellation states.
func (s ApplicationState) Canceled() bool {
	return s == StateCanceled || s == StateCanceledNotPaid
}

// Valid reports whether s is a known state.
func (s ApplicationState) Valid() bool {
	switch s {
	case StateNew, StateWaitingForPayment, StatePaid, StateCanceled, StateCanceledNotPaid:
		return true
	}
	return false
}

// Application records one registration event for a user.
type Application struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Kind         ApplicationKind  `json:"kind"`
	Roles        []uuid.UUID      `json:"roles,omitempty"`
	Subevents    []uuid.UUID      `json:"subevents,omitempty"`
	Fee          int              `json:"fee"`
	State        ApplicationState `json:"state"`
	MaturityDate *time.Time       `json:"maturity_date,omitempty"`
	PaymentDate  *time.Time       `json:"payment_date,omitempty"`
	PaidBy       *uuid.UUID       `json:"paid_by,omitempty"`
	Approved     bool             `json:"approved"`
	CreatedBy    *uuid.UUID       `json:"created_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ValidTo      *time.Time       `json:"valid_to,omitempty"`
}

// TicketCheck is an append-only admission scan record.
type TicketCheck struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	SubeventID uuid.UUID `json:"subevent_id"`
	CheckedAt  time.Time `json:"checked_at"`
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
