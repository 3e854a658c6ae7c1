package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

func TestRoleUpdateRejectsRequiredCollision(t *testing.T) {
	f := newFixture(t)
	a := f.role(model.RoleRequest{Name: "A"})
	b := f.role(model.RoleRequest{Name: "B", RequiredRoles: []uuid.UUID{a.ID}})

	_, err := f.roles.Update(context.Background(), a.ID, model.RoleRequest{
		Name:              "A",
		Registerable:      true,
		IncompatibleRoles: []uuid.UUID{b.ID},
	})
	ve, ok := eligibility.AsValidation(err)
	if !ok || ve.Kind != eligibility.KindRequiredCollision {
		t.Fatalf("error = %v, want RequiredCollision", err)
	}

	got, err := f.roles.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.IncompatibleRoles) != 0 {
		t.Fatalf("role changed after rejected edit: %v", got.IncompatibleRoles)
	}
}

func TestRoleCreateRejectsBothLists(t *testing.T) {
	f := newFixture(t)
	a := f.role(model.RoleRequest{Name: "A"})
	_, err := f.roles.Create(context.Background(), model.RoleRequest{
		Name:              "B",
		IncompatibleRoles: []uuid.UUID{a.ID},
		RequiredRoles:     []uuid.UUID{a.ID},
	})
	if ve, ok := eligibility.AsValidation(err); !ok || ve.Kind != eligibility.KindRequiredCollision {
		t.Fatalf("error = %v, want RequiredCollision", err)
	}
}

func TestRoleCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  model.RoleRequest
	}{
		{"empty name", model.RoleRequest{Name: "  "}},
		{"negative capacity", model.RoleRequest{Name: "x", Capacity: intPtr(-1)}},
		{"negative fee", model.RoleRequest{Name: "x", Fee: intPtr(-5)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.roles.Create(context.Background(), tc.req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRoleCapacityBelowHolders(t *testing.T) {
	f := newFixture(t)
	attendee := f.role(model.RoleRequest{Name: "attendee", Fee: intPtr(0)})
	f.mustRegister(f.user("jan").ID, []uuid.UUID{attendee.ID}, nil)
	f.mustRegister(f.user("eva").ID, []uuid.UUID{attendee.ID}, nil)

	_, err := f.roles.Update(context.Background(), attendee.ID, model.RoleRequest{Name: "attendee", Fee: intPtr(0), Capacity: intPtr(1)})
	if !errors.Is(err, ErrCapacityBelowHolders) {
		t.Fatalf("error = %v, want ErrCapacityBelowHolders", err)
	}
}

func TestRoleDeleteInUse(t *testing.T) {
	f := newFixture(t)
	attendee := f.role(model.RoleRequest{Name: "attendee"})
	spare := f.role(model.RoleRequest{Name: "spare"})
	f.mustRegister(f.user("jan").ID, []uuid.UUID{attendee.ID}, nil)

	if err := f.roles.Delete(context.Background(), attendee.ID); !errors.Is(err, repository.ErrRoleInUse) {
		t.Fatalf("error = %v, want ErrRoleInUse", err)
	}
	if err := f.roles.Delete(context.Background(), spare.ID); err != nil {
		t.Fatalf("delete unused role: %v", err)
	}
	if _, err := f.roles.Get(context.Background(), spare.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSubeventImplicitFlag(t *testing.T) {
	f := newFixture(t)
	if !f.implicit.Implicit {
		t.Fatal("first subevent should be implicit")
	}
	ws := f.subevent("workshop", 10, nil)
	if ws.Implicit {
		t.Fatal("second subevent should not be implicit")
	}

	if err := f.subevents.Delete(context.Background(), f.implicit.ID); !errors.Is(err, ErrImplicitSubevent) {
		t.Fatalf("error = %v, want ErrImplicitSubevent", err)
	}

	if _, err := f.subevents.SetImplicit(context.Background(), ws.ID); err != nil {
		t.Fatalf("SetImplicit: %v", err)
	}
	list, err := f.subevents.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	implicit := 0
	for _, s := range list {
		if s.Implicit {
			implicit++
			if s.ID != ws.ID {
				t.Fatalf("implicit subevent = %s, want workshop", s.Name)
			}
		}
	}
	if implicit != 1 {
		t.Fatalf("implicit subevents = %d, want 1", implicit)
	}
	if err := f.subevents.Delete(context.Background(), f.implicit.ID); err != nil {
		t.Fatalf("delete former implicit subevent: %v", err)
	}
}

func TestSubeventDeleteInUse(t *testing.T) {
	f := newFixture(t)
	attendee := f.role(model.RoleRequest{Name: "attendee"})
	ws := f.subevent("workshop", 10, nil)
	f.mustRegister(f.user("jan").ID, []uuid.UUID{attendee.ID}, []uuid.UUID{ws.ID})

	if err := f.subevents.Delete(context.Background(), ws.ID); !errors.Is(err, repository.ErrSubeventInUse) {
		t.Fatalf("error = %v, want ErrSubeventInUse", err)
	}
}

func TestCheckTicket(t *testing.T) {
	f := newFixture(t)
	attendee := f.role(model.RoleRequest{Name: "attendee"})
	ws := f.subevent("workshop", 10, nil)
	u := f.user("jan")
	f.mustRegister(u.ID, []uuid.UUID{attendee.ID}, []uuid.UUID{ws.ID})

	if _, err := f.tickets.CheckTicket(context.Background(), u.ID, f.implicit.ID); !errors.Is(err, ErrNotAttending) {
		t.Fatalf("error = %v, want ErrNotAttending", err)
	}

	first, err := f.tickets.CheckTicket(context.Background(), u.ID, ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Previous) != 0 {
		t.Fatalf("previous = %d, want 0", len(first.Previous))
	}
	second, err := f.tickets.CheckTicket(context.Background(), u.ID, ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Previous) != 1 || second.Previous[0].ID != first.Check.ID {
		t.Fatalf("previous = %+v, want the first check", second.Previous)
	}
}

func TestUserCreate(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  model.CreateUserRequest
		want error
	}{
		{"valid", model.CreateUserRequest{Username: "jan", Email: "Jan@Example.com"}, nil},
		{"duplicate", model.CreateUserRequest{Username: "jan", Email: "other@example.com"}, repository.ErrDuplicate},
		{"no username", model.CreateUserRequest{Email: "x@example.com"}, ErrInvalidInput},
		{"bad email", model.CreateUserRequest{Username: "eva", Email: "eva"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := f.users.Create(context.Background(), tc.req)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("error = %v, want %v", err, tc.want)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if u.Email != "jan@example.com" {
				t.Fatalf("email = %q, want lower-cased", u.Email)
			}
		})
	}
}

func TestNewUserGetsNonregisteredRole(t *testing.T) {
	f := newFixture(t)
	nonreg := f.role(model.RoleRequest{Name: "Unregistered", SystemName: model.RoleSystemNonregistered})
	u := f.user("jan")
	if len(u.Roles) != 1 || u.Roles[0] != nonreg.ID {
		t.Fatalf("roles = %v, want [nonregistered]", u.Roles)
	}

	attendee := f.role(model.RoleRequest{Name: "attendee"})
	f.mustRegister(u.ID, []uuid.UUID{attendee.ID}, nil)
	got, err := f.reg.CancelRegistration(context.Background(), f.settings, u.ID, model.StateCanceled, Actor{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != nonreg.ID {
		t.Fatalf("roles after cancel = %v, want [nonregistered]", got.Roles)
	}
}

func TestActorDerivesAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.role(model.RoleRequest{Name: "organizer", Fee: intPtr(0), Permissions: []string{model.PermissionManageUsers}})
	attendee := f.role(model.RoleRequest{Name: "attendee", Fee: intPtr(0)})
	boss, guest := f.user("boss"), f.user("guest")
	f.mustRegister(boss.ID, []uuid.UUID{admin.ID}, nil)
	f.mustRegister(guest.ID, []uuid.UUID{attendee.ID}, nil)

	a, err := f.users.Actor(context.Background(), &boss.ID)
	if err != nil || !a.Admin {
		t.Fatalf("boss actor = %+v, %v; want admin", a, err)
	}
	if !a.Can(model.PermissionManageUsers) || a.Can(model.PermissionManagePayments) {
		t.Fatalf("boss permissions = %v, want only users.manage", a.Permissions)
	}
	if !a.Is(boss.ID) || a.Is(guest.ID) {
		t.Fatal("actor identity mismatch")
	}
	a, err = f.users.Actor(context.Background(), &guest.ID)
	if err != nil || a.Admin {
		t.Fatalf("guest actor = %+v, %v; want non-admin", a, err)
	}
	a, err = f.users.Actor(context.Background(), nil)
	if err != nil || a.Admin || a.ID != nil {
		t.Fatalf("anonymous actor = %+v, %v", a, err)
	}
	missing := uuid.New()
	if _, err := f.users.Actor(context.Background(), &missing); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	req := model.CreateUserRequest{Username: "root", Email: "root@example.com"}

	first, err := f.users.EnsureAdmin(context.Background(), req)
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	second, err := f.users.EnsureAdmin(context.Background(), req)
	if err != nil {
		t.Fatalf("second EnsureAdmin: %v", err)
	}
	if first.ID != second.ID || len(second.Roles) != 1 {
		t.Fatalf("second call = %+v, want the same user holding one role", second)
	}

	roles, err := f.roles.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	admins := 0
	for _, r := range roles {
		if r.SystemName == model.RoleSystemAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("admin system roles = %d, want 1", admins)
	}

	a, err := f.users.Actor(context.Background(), &first.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, perm := range model.AllPermissions {
		if !a.Can(perm) {
			t.Fatalf("admin lacks %s", perm)
		}
	}
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	f := newFixture(t)
	attendee := f.role(model.RoleRequest{Name: "attendee", Fee: intPtr(0)})
	jan := f.user("jan")
	f.mustRegister(jan.ID, []uuid.UUID{attendee.ID}, nil)

	got, err := f.users.EnsureAdmin(context.Background(), model.CreateUserRequest{Username: "jan", Email: "jan@example.com"})
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if got.ID != jan.ID || len(got.Roles) != 2 || !got.HasRole(attendee.ID) {
		t.Fatalf("roles = %v, want attendee kept and admin added", got.Roles)
	}
	if _, err := f.users.EnsureAdmin(context.Background(), model.CreateUserRequest{Username: "x", Email: "bogus"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
