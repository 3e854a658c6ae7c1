package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

func TestRollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.SaveRole(ctx, model.Role{ID: uuid.New(), Name: "attendee"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v, want boom", err)
	}

	_ = s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		roles, _ := uow.Roles(ctx)
		if len(roles) != 0 {
			t.Fatalf("roles after rollback = %d, want 0", len(roles))
		}
		return nil
	})
}

func TestCommitPublishesChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	if err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		return uow.SaveRole(ctx, model.Role{ID: id, Name: "attendee"})
	}); err != nil {
		t.Fatal(err)
	}
	_ = s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		roles, _ := uow.Roles(ctx)
		if len(roles) != 1 || roles[0].ID != id {
			t.Fatalf("roles = %v", roles)
		}
		return nil
	})
}

func TestSaveRoleKeepsIncompatibilitySymmetric(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := model.Role{ID: uuid.New(), Name: "A"}, model.Role{ID: uuid.New(), Name: "B"}

	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.SaveRole(ctx, a); err != nil {
			return err
		}
		if err := uow.SaveRole(ctx, b); err != nil {
			return err
		}
		a.IncompatibleRoles = []uuid.UUID{b.ID}
		return uow.SaveRole(ctx, a)
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		roles, _ := uow.Roles(ctx)
		if len(roles[1].IncompatibleRoles) != 1 || roles[1].IncompatibleRoles[0] != a.ID {
			t.Fatalf("B.IncompatibleRoles = %v, want [A]", roles[1].IncompatibleRoles)
		}
		return nil
	})
}

func TestDeleteRoleInUse(t *testing.T) {
	ctx := context.Background()
	s := New()
	role := model.Role{ID: uuid.New(), Name: "attendee"}
	usr := &model.User{ID: uuid.New(), Username: "jan", Email: "jan@example.com"}

	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.SaveRole(ctx, role); err != nil {
			return err
		}
		if err := uow.CreateUser(ctx, usr); err != nil {
			return err
		}
		if err := uow.SetUserRoles(ctx, usr.ID, []uuid.UUID{role.ID}); err != nil {
			return err
		}
		return uow.DeleteRole(ctx, role.ID)
	})
	if !errors.Is(err, repository.ErrRoleInUse) {
		t.Fatalf("error = %v, want ErrRoleInUse", err)
	}
}

func TestDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, &model.User{ID: uuid.New(), Username: "jan", Email: "a@example.com"}); err != nil {
			return err
		}
		return uow.CreateUser(ctx, &model.User{ID: uuid.New(), Username: "jan", Email: "b@example.com"})
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("error = %v, want ErrDuplicate", err)
	}
}

func TestApplicationCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()
	usr := &model.User{ID: uuid.New(), Username: "jan", Email: "jan@example.com"}
	app := &model.Application{ID: uuid.New(), UserID: usr.ID, Kind: model.KindRoles, State: model.StateNew}

	_ = s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, usr); err != nil {
			t.Fatal(err)
		}
		return uow.InsertApplication(ctx, app)
	})
	app.State = model.StatePaid

	_ = s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		got, err := uow.GetApplication(ctx, app.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State != model.StateNew {
			t.Fatalf("state = %s, want NEW", got.State)
		}
		return nil
	})
}

func TestUserIDByUsername(t *testing.T) {
	ctx := context.Background()
	s := New()
	usr := &model.User{ID: uuid.New(), Username: "jan", Email: "jan@example.com"}

	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, usr); err != nil {
			return err
		}
		got, err := uow.UserIDByUsername(ctx, "jan")
		if err != nil || got != usr.ID {
			t.Fatalf("lookup = %s, %v; want %s", got, err, usr.ID)
		}
		if _, err := uow.UserIDByUsername(ctx, "eva"); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateApplicationKeepsPaidBy(t *testing.T) {
	ctx := context.Background()
	s := New()
	usr := &model.User{ID: uuid.New(), Username: "jan", Email: "jan@example.com"}
	cashier := uuid.New()
	app := &model.Application{ID: uuid.New(), UserID: usr.ID, Kind: model.KindRoles, State: model.StateWaitingForPayment}

	err := s.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.CreateUser(ctx, usr); err != nil {
			return err
		}
		if err := uow.InsertApplication(ctx, app); err != nil {
			return err
		}
		app.State = model.StatePaid
		app.PaidBy = &cashier
		if err := uow.UpdateApplication(ctx, app); err != nil {
			return err
		}
		got, err := uow.GetApplication(ctx, app.ID)
		if err != nil {
			return err
		}
		if got.PaidBy == nil || *got.PaidBy != cashier {
			t.Fatalf("paid by = %v, want %s", got.PaidBy, cashier)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
