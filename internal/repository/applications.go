package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, user_id, kind, roles, subevents, fee, state, maturity_date, payment_date,
	approved, created_by, paid_by, created_at, updated_at, valid_to`

func scanApplication(row pgx.Row) (model.Application, error) {
	var a model.Application
	var kind, state string
	err := row.Scan(&a.ID, &a.UserID, &kind, &a.Roles, &a.Subevents, &a.Fee, &state, &a.MaturityDate, &a.PaymentDate,
		&a.Approved, &a.CreatedBy, &a.PaidBy, &a.CreatedAt, &a.UpdatedAt, &a.ValidTo)
	a.Kind = model.ApplicationKind(kind)
	a.State = model.ApplicationState(state)
	return a, err
}

func (u *pgUnit) userApplications(ctx context.Context, userID uuid.UUID) ([]model.Application, error) {
	rows, err := u.tx.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetApplication locks and returns one application.
func (u *pgUnit) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	a, err := scanApplication(u.tx.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

// InsertApplication persists a new application version.
func (u *pgUnit) InsertApplication(ctx context.Context, a *model.Application) error {
	_, err := u.tx.Exec(ctx,
		`INSERT INTO applications (`+applicationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.UserID, string(a.Kind), nonNilIDs(a.Roles), nonNilIDs(a.Subevents), a.Fee, string(a.State),
		a.MaturityDate, a.PaymentDate, a.Approved, a.CreatedBy, a.PaidBy, a.CreatedAt, a.UpdatedAt, a.ValidTo,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", a.UserID, ErrNotFound)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// UpdateApplication writes the mutable fields of a.
func (u *pgUnit) UpdateApplication(ctx context.Context, a *model.Application) error {
	tag, err := u.tx.Exec(ctx,
		`UPDATE applications
		 SET state = $2, maturity_date = $3, payment_date = $4, paid_by = $5, approved = $6, updated_at = $7, valid_to = $8
		 WHERE id = $1`,
		a.ID, string(a.State), a.MaturityDate, a.PaymentDate, a.PaidBy, a.Approved, a.UpdatedAt, a.ValidTo,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
