package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subeventColumns = `id, name, fee, capacity, implicit, registerable_from, registerable_to`

func scanSubevent(row pgx.Row) (model.Subevent, error) {
	var s model.Subevent
	err := row.Scan(&s.ID, &s.Name, &s.Fee, &s.Capacity, &s.Implicit, &s.RegisterableFrom, &s.RegisterableTo)
	return s, err
}

func (u *pgUnit) querySubevents(ctx context.Context, query string, args ...any) ([]model.Subevent, error) {
	rows, err := u.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subevents: %w", err)
	}
	defer rows.Close()

	var out []model.Subevent
	for rows.Next() {
		s, err := scanSubevent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subevent: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Subevents returns all subevents, the implicit one first.
func (u *pgUnit) Subevents(ctx context.Context) ([]model.Subevent, error) {
	return u.querySubevents(ctx, `SELECT `+subeventColumns+` FROM subevents ORDER BY implicit DESC, name`)
}

// SubeventsByIDs returns the subevents in the order of ids.
func (u *pgUnit) SubeventsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Subevent, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := u.querySubevents(ctx, `SELECT `+subeventColumns+` FROM subevents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.Subevent, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]model.Subevent, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("subevent %s: %w", id, ErrNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

// ImplicitSubevent returns the subevent auto-assigned to registrations
// without an explicit subevent choice.
func (u *pgUnit) ImplicitSubevent(ctx context.Context) (model.Subevent, error) {
	s, err := scanSubevent(u.tx.QueryRow(ctx, `SELECT `+subeventColumns+` FROM subevents WHERE implicit`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Subevent{}, fmt.Errorf("implicit subevent: %w", ErrNotFound)
		}
		return model.Subevent{}, fmt.Errorf("get implicit subevent: %w", err)
	}
	return s, nil
}

// LockSubevents locks subevent rows and counts their current holders.
func (u *pgUnit) LockSubevents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	if _, err := u.tx.Exec(ctx, `SELECT id FROM subevents WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids); err != nil {
		return nil, fmt.Errorf("lock subevents: %w", err)
	}
	rows, err := u.tx.Query(ctx,
		`SELECT subevent_id, COUNT(*) FROM user_subevents WHERE subevent_id = ANY($1) GROUP BY subevent_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("count subevent holders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan subevent holders: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// SaveSubevent upserts s.
func (u *pgUnit) SaveSubevent(ctx context.Context, s model.Subevent) error {
	_, err := u.tx.Exec(ctx,
		`INSERT INTO subevents (id, name, fee, capacity, implicit, registerable_from, registerable_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    fee = EXCLUDED.fee,
		    capacity = EXCLUDED.capacity,
		    implicit = EXCLUDED.implicit,
		    registerable_from = EXCLUDED.registerable_from,
		    registerable_to = EXCLUDED.registerable_to`,
		s.ID, s.Name, s.Fee, s.Capacity, s.Implicit, s.RegisterableFrom, s.RegisterableTo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subevent %q: %w", s.Name, ErrDuplicate)
		}
		return fmt.Errorf("save subevent: %w", err)
	}
	return nil
}

// DeleteSubevent removes a subevent nobody holds.
func (u *pgUnit) DeleteSubevent(ctx context.Context, id uuid.UUID) error {
	tag, err := u.tx.Exec(ctx, `DELETE FROM subevents WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrSubeventInUse
		}
		return fmt.Errorf("delete subevent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
