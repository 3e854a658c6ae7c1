// Package memory is an in-memory implementation of repository.TxRunner.
// A unit of work operates on a private copy of the data which replaces the
// shared state only when the transaction function returns nil. The store
// mutex is held for the whole unit of work, so transactions are serial.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	roles         map[uuid.UUID]model.Role
	subevents     map[uuid.UUID]model.Subevent
	users         map[uuid.UUID]model.User
	userRoles     map[uuid.UUID][]uuid.UUID
	userSubevents map[uuid.UUID][]uuid.UUID
	applications  map[uuid.UUID]model.Application
	appOrder      []uuid.UUID
	ticketChecks  []model.TicketCheck
}

func newState() *state {
	return &state{
		roles:         make(map[uuid.UUID]model.Role),
		subevents:     make(map[uuid.UUID]model.Subevent),
		users:         make(map[uuid.UUID]model.User),
		userRoles:     make(map[uuid.UUID][]uuid.UUID),
		userSubevents: make(map[uuid.UUID][]uuid.UUID),
		applications:  make(map[uuid.UUID]model.Application),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, r := range s.roles {
		c.roles[id] = cloneRole(r)
	}
	for id, sub := range s.subevents {
		c.subevents[id] = sub
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	for id, ids := range s.userRoles {
		c.userRoles[id] = slices.Clone(ids)
	}
	for id, ids := range s.userSubevents {
		c.userSubevents[id] = slices.Clone(ids)
	}
	for id, a := range s.applications {
		c.applications[id] = cloneApplication(a)
	}
	c.appOrder = slices.Clone(s.appOrder)
	c.ticketChecks = slices.Clone(s.ticketChecks)
	return c
}

func cloneRole(r model.Role) model.Role {
	r.IncompatibleRoles = slices.Clone(r.IncompatibleRoles)
	r.RequiredRoles = slices.Clone(r.RequiredRoles)
	r.Permissions = slices.Clone(r.Permissions)
	r.Pages = slices.Clone(r.Pages)
	return r
}

func cloneApplication(a model.Application) model.Application {
	a.Roles = slices.Clone(a.Roles)
	a.Subevents = slices.Clone(a.Subevents)
	return a
}

// Store is the in-memory TxRunner.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

var _ repository.TxRunner = (*Store)(nil)

// RunInTx runs fn against a copy of the data and publishes the copy only
// when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, uow repository.UnitOfWork) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &unit{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type unit struct {
	st *state
}

var _ repository.UnitOfWork = (*unit)(nil)

// ─── Roles ────────────────────────────────────────────────────────────────────

func (u *unit) Roles(ctx context.Context) ([]model.Role, error) {
	out := make([]model.Role, 0, len(u.st.roles))
	for _, r := range u.st.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (u *unit) LockRoles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		if _, ok := u.st.roles[id]; !ok {
			return nil, fmt.Errorf("lock roles: %w", repository.ErrNotFound)
		}
		counts[id] = u.holders(u.st.userRoles, id)
	}
	return counts, nil
}

func (u *unit) CountRoleHolders(ctx context.Context, id uuid.UUID) (int, error) {
	return u.holders(u.st.userRoles, id), nil
}

func (u *unit) holders(assign map[uuid.UUID][]uuid.UUID, id uuid.UUID) int {
	n := 0
	for _, ids := range assign {
		if slices.Contains(ids, id) {
			n++
		}
	}
	return n
}

func (u *unit) SaveRole(ctx context.Context, r model.Role) error {
	for id, other := range u.st.roles {
		if id != r.ID && other.Name == r.Name {
			return fmt.Errorf("role %q: %w", r.Name, repository.ErrDuplicate)
		}
	}
	for _, id := range append(slices.Clone(r.IncompatibleRoles), r.RequiredRoles...) {
		if _, ok := u.st.roles[id]; !ok && id != r.ID {
			return fmt.Errorf("role %s: %w", id, repository.ErrNotFound)
		}
	}

	for id, other := range u.st.roles {
		if id == r.ID {
			continue
		}
		other.IncompatibleRoles = slices.DeleteFunc(other.IncompatibleRoles, func(x uuid.UUID) bool { return x == r.ID })
		if slices.Contains(r.IncompatibleRoles, id) {
			other.IncompatibleRoles = append(other.IncompatibleRoles, r.ID)
		}
		u.st.roles[id] = other
	}
	u.st.roles[r.ID] = cloneRole(r)
	return nil
}

func (u *unit) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, ok := u.st.roles[id]; !ok {
		return repository.ErrNotFound
	}
	if u.holders(u.st.userRoles, id) > 0 {
		return repository.ErrRoleInUse
	}
	delete(u.st.roles, id)
	for rid, r := range u.st.roles {
		r.IncompatibleRoles = slices.DeleteFunc(r.IncompatibleRoles, func(x uuid.UUID) bool { return x == id })
		r.RequiredRoles = slices.DeleteFunc(r.RequiredRoles, func(x uuid.UUID) bool { return x == id })
		u.st.roles[rid] = r
	}
	return nil
}

// ─── Subevents ────────────────────────────────────────────────────────────────

func (u *unit) Subevents(ctx context.Context) ([]model.Subevent, error) {
	out := make([]model.Subevent, 0, len(u.st.subevents))
	for _, s := range u.st.subevents {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Implicit != out[j].Implicit {
			return out[i].Implicit
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (u *unit) SubeventsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Subevent, error) {
	var out []model.Subevent
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, ok := u.st.subevents[id]
		if !ok {
			return nil, fmt.Errorf("subevent %s: %w", id, repository.ErrNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

func (u *unit) ImplicitSubevent(ctx context.Context) (model.Subevent, error) {
	for _, s := range u.st.subevents {
		if s.Implicit {
			return s, nil
		}
	}
	return model.Subevent{}, fmt.Errorf("implicit subevent: %w", repository.ErrNotFound)
}

func (u *unit) LockSubevents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		counts[id] = u.holders(u.st.userSubevents, id)
	}
	return counts, nil
}

func (u *unit) SaveSubevent(ctx context.Context, s model.Subevent) error {
	for id, other := range u.st.subevents {
		if id == s.ID {
			continue
		}
		if other.Name == s.Name {
			return fmt.Errorf("subevent %q: %w", s.Name, repository.ErrDuplicate)
		}
		if s.Implicit && other.Implicit {
			return fmt.Errorf("implicit subevent: %w", repository.ErrDuplicate)
		}
	}
	u.st.subevents[s.ID] = s
	return nil
}

func (u *unit) DeleteSubevent(ctx context.Context, id uuid.UUID) error {
	if _, ok := u.st.subevents[id]; !ok {
		return repository.ErrNotFound
	}
	if u.holders(u.st.userSubevents, id) > 0 {
		return repository.ErrSubeventInUse
	}
	delete(u.st.subevents, id)
	u.st.ticketChecks = slices.DeleteFunc(u.st.ticketChecks, func(c model.TicketCheck) bool { return c.SubeventID == id })
	return nil
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (u *unit) CreateUser(ctx context.Context, usr *model.User) error {
	for _, other := range u.st.users {
		if other.Username == usr.Username || other.Email == usr.Email {
			return fmt.Errorf("user %q: %w", usr.Username, repository.ErrDuplicate)
		}
	}
	row := *usr
	row.Roles, row.Subevents, row.Applications = nil, nil, nil
	u.st.users[usr.ID] = row
	return nil
}

func (u *unit) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	row, ok := u.st.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	usr := row
	usr.Roles = append([]uuid.UUID{}, u.st.userRoles[id]...)
	usr.Subevents = append([]uuid.UUID{}, u.st.userSubevents[id]...)
	for _, appID := range u.st.appOrder {
		if a := u.st.applications[appID]; a.UserID == id {
			usr.Applications = append(usr.Applications, cloneApplication(a))
		}
	}
	return &usr, nil
}

func (u *unit) UserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	for id, usr := range u.st.users {
		if usr.Username == username {
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("user %q: %w", username, repository.ErrNotFound)
}

func (u *unit) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if _, ok := u.st.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	var ids []uuid.UUID
	for _, id := range roleIDs {
		if _, ok := u.st.roles[id]; !ok {
			return fmt.Errorf("role %s: %w", id, repository.ErrNotFound)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	u.st.userRoles[userID] = ids
	return nil
}

func (u *unit) SetUserSubevents(ctx context.Context, userID uuid.UUID, subeventIDs []uuid.UUID) error {
	if _, ok := u.st.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	var ids []uuid.UUID
	for _, id := range subeventIDs {
		if _, ok := u.st.subevents[id]; !ok {
			return fmt.Errorf("subevent %s: %w", id, repository.ErrNotFound)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	u.st.userSubevents[userID] = ids
	return nil
}

func (u *unit) SetUserApproved(ctx context.Context, userID uuid.UUID, approved bool) error {
	usr, ok := u.st.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	usr.Approved = approved
	u.st.users[userID] = usr
	return nil
}

func (u *unit) UsersWithWaitingApplication(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, appID := range u.st.appOrder {
		a := u.st.applications[appID]
		if a.ValidTo != nil || a.State != model.StateWaitingForPayment || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		out = append(out, a.UserID)
	}
	return out, nil
}

// ─── Applications ─────────────────────────────────────────────────────────────

func (u *unit) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	a, ok := u.st.applications[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, repository.ErrNotFound)
	}
	a = cloneApplication(a)
	return &a, nil
}

func (u *unit) InsertApplication(ctx context.Context, a *model.Application) error {
	if _, ok := u.st.users[a.UserID]; !ok {
		return fmt.Errorf("user %s: %w", a.UserID, repository.ErrNotFound)
	}
	if _, ok := u.st.applications[a.ID]; ok {
		return fmt.Errorf("application %s: %w", a.ID, repository.ErrDuplicate)
	}
	u.st.applications[a.ID] = cloneApplication(*a)
	u.st.appOrder = append(u.st.appOrder, a.ID)
	return nil
}

func (u *unit) UpdateApplication(ctx context.Context, a *model.Application) error {
	cur, ok := u.st.applications[a.ID]
	if !ok {
		return fmt.Errorf("application %s: %w", a.ID, repository.ErrNotFound)
	}
	cur.State = a.State
	cur.MaturityDate = a.MaturityDate
	cur.PaymentDate = a.PaymentDate
	cur.PaidBy = a.PaidBy
	cur.Approved = a.Approved
	cur.UpdatedAt = a.UpdatedAt
	cur.ValidTo = a.ValidTo
	u.st.applications[a.ID] = cur
	return nil
}

// ─── Ticket checks ────────────────────────────────────────────────────────────

func (u *unit) InsertTicketCheck(ctx context.Context, c *model.TicketCheck) error {
	if _, ok := u.st.users[c.UserID]; !ok {
		return fmt.Errorf("ticket check: %w", repository.ErrNotFound)
	}
	if _, ok := u.st.subevents[c.SubeventID]; !ok {
		return fmt.Errorf("ticket check: %w", repository.ErrNotFound)
	}
	u.st.ticketChecks = append(u.st.ticketChecks, *c)
	return nil
}

func (u *unit) TicketChecks(ctx context.Context, userID, subeventID uuid.UUID) ([]model.TicketCheck, error) {
	var out []model.TicketCheck
	for _, c := range u.st.ticketChecks {
		if c.UserID == userID && c.SubeventID == subeventID {
			out = append(out, c)
		}
	}
	return out, nil
}
