package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository/memory"
	"github.com/google/uuid"
)

var testNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (r *recordingSender) SendTemplated(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	if r.fail {
		return errors.New("mail queue down")
	}
	return nil
}

func (r *recordingSender) templates() []notify.Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Template, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Template
	}
	return out
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	clock     *clock.Fixed
	sender    *recordingSender
	settings  config.Settings
	reg       *RegistrationService
	roles     *RoleService
	subevents *SubeventService
	users     *UserService
	tickets   *TicketService
	implicit  model.Subevent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		t:        t,
		store:    memory.New(),
		clock:    clock.NewFixed(testNow),
		sender:   &recordingSender{},
		settings: config.DefaultSettings(),
	}
	f.reg = NewRegistrationService(f.store, f.sender, f.clock, logger)
	f.roles = NewRoleService(f.store, logger)
	f.subevents = NewSubeventService(f.store, logger)
	f.users = NewUserService(f.store, f.clock)
	f.tickets = NewTicketService(f.store, f.clock)

	sub, err := f.subevents.Create(context.Background(), model.SubeventRequest{Name: "Main programme"})
	if err != nil {
		t.Fatalf("create implicit subevent: %v", err)
	}
	f.implicit = *sub
	return f
}

func intPtr(n int) *int { return &n }

func (f *fixture) role(req model.RoleRequest) model.Role {
	f.t.Helper()
	req.Registerable = true
	r, err := f.roles.Create(context.Background(), req)
	if err != nil {
		f.t.Fatalf("create role %s: %v", req.Name, err)
	}
	return *r
}

func (f *fixture) subevent(name string, fee int, capacity *int) model.Subevent {
	f.t.Helper()
	s, err := f.subevents.Create(context.Background(), model.SubeventRequest{Name: name, Fee: fee, Capacity: capacity})
	if err != nil {
		f.t.Fatalf("create subevent %s: %v", name, err)
	}
	return *s
}

func (f *fixture) user(name string) *model.User {
	f.t.Helper()
	u, err := f.users.Create(context.Background(), model.CreateUserRequest{Username: name, Email: name + "@example.com", FirstName: name})
	if err != nil {
		f.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) register(userID uuid.UUID, roles []uuid.UUID, subevents []uuid.UUID) (*model.User, error) {
	return f.reg.Register(context.Background(), f.settings, RegisterInput{
		UserID:      userID,
		RoleIDs:     roles,
		SubeventIDs: subevents,
	}, Actor{})
}

func (f *fixture) mustRegister(userID uuid.UUID, roles []uuid.UUID, subevents []uuid.UUID) *model.User {
	f.t.Helper()
	u, err := f.register(userID, roles, subevents)
	if err != nil {
		f.t.Fatalf("Register: %v", err)
	}
	return u
}

func active(t *testing.T, u *model.User, kind model.ApplicationKind) model.Application {
	t.Helper()
	apps := activeApplications(u, kind)
	if len(apps) != 1 {
		t.Fatalf("active %s applications = %d, want 1", kind, len(apps))
	}
	return apps[0]
}
