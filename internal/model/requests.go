package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleRequest is the payload for creating or editing a role.
type RoleRequest struct {
	Name                      string      `json:"name"`
	SystemName                string      `json:"system_name"`
	Registerable              bool        `json:"registerable"`
	RegisterableFrom          *time.Time  `json:"registerable_from"`
	RegisterableTo            *time.Time  `json:"registerable_to"`
	Capacity                  *int        `json:"capacity"`
	Fee                       *int        `json:"fee"`
	IncompatibleRoles         []uuid.UUID `json:"incompatible_roles"`
	RequiredRoles             []uuid.UUID `json:"required_roles"`
	Permissions               []string    `json:"permissions"`
	Pages                     []string    `json:"pages"`
	ApprovedAfterRegistration bool        `json:"approved_after_registration"`
}

// SubeventRequest is the payload for creating a subevent.
type SubeventRequest struct {
	Name             string     `json:"name"`
	Fee              int        `json:"fee"`
	Capacity         *int       `json:"capacity"`
	RegisterableFrom *time.Time `json:"registerable_from"`
	RegisterableTo   *time.Time `json:"registerable_to"`
}

// CreateUserRequest is the payload for creating a registrant account.
type CreateUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterRequest is the payload for registering a user.
type RegisterRequest struct {
	Roles               []uuid.UUID `json:"roles"`
	Subevents           []uuid.UUID `json:"subevents"`
	ApprovedImmediately bool        `json:"approved_immediately"`
}

// UpdateRolesRequest replaces a user's roles.
type UpdateRolesRequest struct {
	Roles []uuid.UUID `json:"roles"`
}

// UpdateSubeventsRequest replaces a user's subevents.
type UpdateSubeventsRequest struct {
	Subevents []uuid.UUID `json:"subevents"`
}

// CancelRequest carries the terminal state for a cancellation.
type CancelRequest struct {
	State ApplicationState `json:"state"`
}

// PaymentRequest marks an application as paid.
type PaymentRequest struct {
	PaymentDate *time.Time `json:"payment_date"`
}

// TicketCheckRequest is one admission scan.
type TicketCheckRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	SubeventID uuid.UUID `json:"subevent_id"`
}

// TicketCheckResult is the response to an admission scan; Previous
// lists earlier scans of the same ticket for the same subevent.
type TicketCheckResult struct {
	Check    TicketCheck   `json:"check"`
	Previous []TicketCheck `json:"previous"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Conflicting []string `json:"conflicting,omitempty"`
}
