package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLog stores claims in the reminder_log table, so they survive
// across sweep processes without extra infrastructure.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog returns a Log backed by db. The schema must be applied.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Claim inserts the pair; a conflicting row means it was claimed already.
func (l *PostgresLog) Claim(ctx context.Context, applicationID uuid.UUID, day time.Time) (bool, error) {
	tag, err := l.db.Exec(ctx,
		`INSERT INTO reminder_log (application_id, day) VALUES ($1, $2)
		 ON CONFLICT (application_id, day) DO NOTHING`,
		applicationID, dateOnly(day),
	)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the pair.
func (l *PostgresLog) Release(ctx context.Context, applicationID uuid.UUID, day time.Time) error {
	_, err := l.db.Exec(ctx,
		`DELETE FROM reminder_log WHERE application_id = $1 AND day = $2`,
		applicationID, dateOnly(day),
	)
	if err != nil {
		return fmt.Errorf("release reminder: %w", err)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
