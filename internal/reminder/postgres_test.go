package reminder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/database"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// testPool connects to TEST_DATABASE_URL and skips the test when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPool(ctx, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.ApplySchema(ctx, pool); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	return pool
}

func insertApplication(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	usr := &model.User{ID: uuid.New(), Approved: true, CreatedAt: now}
	usr.Username = "reminder-" + usr.ID.String()
	usr.Email = usr.Username + "@example.com"
	app := &model.Application{
		ID:        uuid.New(),
		UserID:    usr.ID,
		Kind:      model.KindRoles,
		Fee:       100,
		State:     model.StateWaitingForPayment,
		Approved:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := repository.NewStore(pool).RunInTx(context.Background(), func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, usr); err != nil {
			return err
		}
		return uow.InsertApplication(ctx, app)
	})
	if err != nil {
		t.Fatalf("insert application: %v", err)
	}
	return app.ID
}

func TestPostgresLogClaimSurvivesNewLog(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	app := insertApplication(t, pool)
	day := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	first, err := NewPostgresLog(pool).Claim(ctx, app, day)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v; want true", first, err)
	}
	// A later sweep run builds a fresh log over the same database.
	second, err := NewPostgresLog(pool).Claim(ctx, app, day.Add(15*time.Hour))
	if err != nil || second {
		t.Fatalf("claim from a new log = %v, %v; want false", second, err)
	}
	next, err := NewPostgresLog(pool).Claim(ctx, app, day.AddDate(0, 0, 1))
	if err != nil || !next {
		t.Fatalf("next day claim = %v, %v; want true", next, err)
	}
}

func TestPostgresLogRelease(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	l := NewPostgresLog(pool)
	app := insertApplication(t, pool)
	day := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	if ok, err := l.Claim(ctx, app, day); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	if err := l.Release(ctx, app, day); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, err := l.Claim(ctx, app, day); err != nil || !ok {
		t.Fatalf("claim after release = %v, %v; want true", ok, err)
	}
}
