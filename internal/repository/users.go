package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateUser inserts u. ID and CreatedAt are expected to be set.
func (u *pgUnit) CreateUser(ctx context.Context, usr *model.User) error {
	_, err := u.tx.Exec(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, approved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		usr.ID, usr.Username, usr.Email, usr.FirstName, usr.LastName, usr.Approved, usr.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", usr.Username, ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser locks the user row and loads its assignment and application history.
func (u *pgUnit) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	usr := &model.User{}
	err := u.tx.QueryRow(ctx,
		`SELECT id, username, email, first_name, last_name, approved, created_at
		 FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&usr.ID, &usr.Username, &usr.Email, &usr.FirstName, &usr.LastName, &usr.Approved, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if usr.Roles, err = u.queryIDs(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, id); err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	if usr.Subevents, err = u.queryIDs(ctx, `SELECT subevent_id FROM user_subevents WHERE user_id = $1 ORDER BY subevent_id`, id); err != nil {
		return nil, fmt.Errorf("load user subevents: %w", err)
	}
	if usr.Applications, err = u.userApplications(ctx, id); err != nil {
		return nil, err
	}
	return usr, nil
}

// UserIDByUsername looks a user up by login name.
func (u *pgUnit) UserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := u.tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("get user by username: %w", err)
	}
	return id, nil
}

func (u *pgUnit) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := u.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetUserRoles replaces the user's role set.
func (u *pgUnit) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if _, err := u.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	for _, id := range uniqueIDs(roleIDs) {
		if _, err := u.tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, id); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("role %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("insert user role: %w", err)
		}
	}
	return nil
}

// SetUserSubevents replaces the user's subevent set.
func (u *pgUnit) SetUserSubevents(ctx context.Context, userID uuid.UUID, subeventIDs []uuid.UUID) error {
	if _, err := u.tx.Exec(ctx, `DELETE FROM user_subevents WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user subevents: %w", err)
	}
	for _, id := range uniqueIDs(subeventIDs) {
		if _, err := u.tx.Exec(ctx,
			`INSERT INTO user_subevents (user_id, subevent_id) VALUES ($1, $2)`, userID, id); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("subevent %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("insert user subevent: %w", err)
		}
	}
	return nil
}

// SetUserApproved sets the approval flag.
func (u *pgUnit) SetUserApproved(ctx context.Context, userID uuid.UUID, approved bool) error {
	tag, err := u.tx.Exec(ctx, `UPDATE users SET approved = $2 WHERE id = $1`, userID, approved)
	if err != nil {
		return fmt.Errorf("update user approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// UsersWithWaitingApplication lists users owning at least one active
// application in WAITING_FOR_PAYMENT.
func (u *pgUnit) UsersWithWaitingApplication(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := u.queryIDs(ctx,
		`SELECT DISTINCT user_id FROM applications
		 WHERE state = $1 AND valid_to IS NULL
		 ORDER BY user_id`, string(model.StateWaitingForPayment))
	if err != nil {
		return nil, fmt.Errorf("list waiting users: %w", err)
	}
	return ids, nil
}
