package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
)

// InsertTicketCheck appends an admission scan.
func (u *pgUnit) InsertTicketCheck(ctx context.Context, c *model.TicketCheck) error {
	_, err := u.tx.Exec(ctx,
		`INSERT INTO ticket_checks (id, user_id, subevent_id, checked_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.UserID, c.SubeventID, c.CheckedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("ticket check: %w", ErrNotFound)
		}
		return fmt.Errorf("insert ticket check: %w", err)
	}
	return nil
}

// TicketChecks returns the scans of one user's ticket for one subevent, oldest first.
func (u *pgUnit) TicketChecks(ctx context.Context, userID, subeventID uuid.UUID) ([]model.TicketCheck, error) {
	rows, err := u.tx.Query(ctx,
		`SELECT id, user_id, subevent_id, checked_at FROM ticket_checks
		 WHERE user_id = $1 AND subevent_id = $2
		 ORDER BY checked_at`, userID, subeventID)
	if err != nil {
		return nil, fmt.Errorf("list ticket checks: %w", err)
	}
	defer rows.Close()

	var out []model.TicketCheck
	for rows.Next() {
		var c model.TicketCheck
		if err := rows.Scan(&c.ID, &c.UserID, &c.SubeventID, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan ticket check: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
