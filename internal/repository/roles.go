package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Roles returns all roles with their relation edges, ordered by name.
func (u *pgUnit) Roles(ctx context.Context) ([]model.Role, error) {
	rows, err := u.tx.Query(ctx,
		`SELECT id, name, COALESCE(system_name, ''), registerable, registerable_from, registerable_to,
		        capacity, fee, permissions, pages, approved_after_registration
		 FROM roles
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var r model.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.SystemName, &r.Registerable, &r.RegisterableFrom, &r.RegisterableTo,
			&r.Capacity, &r.Fee, &r.Permissions, &r.Pages, &r.ApprovedAfterRegistration); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		index[r.ID] = len(roles)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := u.loadEdges(ctx, `SELECT role_id, incompatible_role_id FROM role_incompatible_roles ORDER BY role_id`, roles, index,
		func(r *model.Role, id uuid.UUID) { r.IncompatibleRoles = append(r.IncompatibleRoles, id) }); err != nil {
		return nil, fmt.Errorf("load incompatible roles: %w", err)
	}
	if err := u.loadEdges(ctx, `SELECT role_id, required_role_id FROM role_required_roles ORDER BY role_id`, roles, index,
		func(r *model.Role, id uuid.UUID) { r.RequiredRoles = append(r.RequiredRoles, id) }); err != nil {
		return nil, fmt.Errorf("load required roles: %w", err)
	}
	return roles, nil
}

func (u *pgUnit) loadEdges(ctx context.Context, query string, roles []model.Role, index map[uuid.UUID]int, add func(*model.Role, uuid.UUID)) error {
	rows, err := u.tx.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var from, to uuid.UUID
		if err := rows.Scan(&from, &to); err != nil {
			return err
		}
		if i, ok := index[from]; ok {
			add(&roles[i], to)
		}
	}
	return rows.Err()
}

// LockRoles locks the role rows in id order (to avoid deadlocks between
// concurrent registrations) and counts their current holders.
func (u *pgUnit) LockRoles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	rows, err := u.tx.Query(ctx, `SELECT id FROM roles WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock roles: %w", err)
	}
	locked := 0
	for rows.Next() {
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock roles: %w", err)
	}
	if locked != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("lock roles: %w", ErrNotFound)
	}

	rows, err = u.tx.Query(ctx,
		`SELECT role_id, COUNT(*) FROM user_roles WHERE role_id = ANY($1) GROUP BY role_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("count role holders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan role holders: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// CountRoleHolders returns how many users hold the role.
func (u *pgUnit) CountRoleHolders(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	if err := u.tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count role holders: %w", err)
	}
	return n, nil
}

// SaveRole upserts the role and rewrites its edges.
func (u *pgUnit) SaveRole(ctx context.Context, r model.Role) error {
	var systemName *string
	if r.SystemName != "" {
		systemName = &r.SystemName
	}
	_, err := u.tx.Exec(ctx,
		`INSERT INTO roles (id, name, system_name, registerable, registerable_from, registerable_to,
		                    capacity, fee, permissions, pages, approved_after_registration)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    system_name = EXCLUDED.system_name,
		    registerable = EXCLUDED.registerable,
		    registerable_from = EXCLUDED.registerable_from,
		    registerable_to = EXCLUDED.registerable_to,
		    capacity = EXCLUDED.capacity,
		    fee = EXCLUDED.fee,
		    permissions = EXCLUDED.permissions,
		    pages = EXCLUDED.pages,
		    approved_after_registration = EXCLUDED.approved_after_registration`,
		r.ID, r.Name, systemName, r.Registerable, r.RegisterableFrom, r.RegisterableTo,
		r.Capacity, r.Fee, nonNilStrings(r.Permissions), nonNilStrings(r.Pages), r.ApprovedAfterRegistration,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role %q: %w", r.Name, ErrDuplicate)
		}
		return fmt.Errorf("save role: %w", err)
	}

	if _, err := u.tx.Exec(ctx,
		`DELETE FROM role_incompatible_roles WHERE role_id = $1 OR incompatible_role_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear incompatible roles: %w", err)
	}
	for _, other := range r.IncompatibleRoles {
		if _, err := u.tx.Exec(ctx,
			`INSERT INTO role_incompatible_roles (role_id, incompatible_role_id)
			 VALUES ($1, $2), ($2, $1)
			 ON CONFLICT DO NOTHING`, r.ID, other); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("incompatible role %s: %w", other, ErrNotFound)
			}
			return fmt.Errorf("insert incompatible role: %w", err)
		}
	}

	if _, err := u.tx.Exec(ctx, `DELETE FROM role_required_roles WHERE role_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear required roles: %w", err)
	}
	for _, req := range r.RequiredRoles {
		if _, err := u.tx.Exec(ctx,
			`INSERT INTO role_required_roles (role_id, required_role_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, r.ID, req); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("required role %s: %w", req, ErrNotFound)
			}
			return fmt.Errorf("insert required role: %w", err)
		}
	}
	return nil
}

// DeleteRole removes a role nobody holds.
func (u *pgUnit) DeleteRole(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := u.tx.QueryRow(ctx, `SELECT TRUE FROM roles WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("lock role: %w", err)
	}
	n, err := u.CountRoleHolders(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	if _, err := u.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return ErrRoleInUse
		}
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
