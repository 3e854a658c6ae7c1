package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/rolegraph"
	"github.com/google/uuid"
)

func loadGraph(ctx context.Context, uow repository.UnitOfWork) (*rolegraph.Graph, error) {
	roles, err := uow.Roles(ctx)
	if err != nil {
		return nil, err
	}
	return rolegraph.New(roles), nil
}

// admitRoles locks the effective role set, validates it and returns the
// roles to assign.
func admitRoles(ctx context.Context, uow repository.UnitOfWork, g *rolegraph.Graph, v *eligibility.Validator, candidate, held []uuid.UUID, now time.Time, actor Actor) ([]model.Role, error) {
	effective, err := g.EffectiveSet(candidate)
	if err != nil {
		return nil, err
	}
	holders, err := uow.LockRoles(ctx, effective)
	if err != nil {
		return nil, err
	}
	effective, err = v.ValidateRoles(eligibility.Candidate{
		RoleIDs:       candidate,
		Held:          held,
		Holders:       holders,
		Now:           now,
		AdminOverride: actor.Admin,
	})
	if err != nil {
		return nil, err
	}
	return g.FindByIDs(effective)
}

// admitSubevents falls back to the implicit subevent when ids is empty.
func admitSubevents(ctx context.Context, uow repository.UnitOfWork, v *eligibility.Validator, ids, held []uuid.UUID, now time.Time, actor Actor) ([]model.Subevent, error) {
	if len(ids) == 0 {
		implicit, err := uow.ImplicitSubevent(ctx)
		if err != nil {
			return nil, err
		}
		ids = []uuid.UUID{implicit.ID}
	}
	subevents, err := uow.SubeventsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	holders, err := uow.LockSubevents(ctx, subeventIDs(subevents))
	if err != nil {
		return nil, err
	}
	err = v.ValidateSubevents(eligibility.SubeventCandidate{
		Subevents:     subevents,
		Held:          held,
		Holders:       holders,
		Now:           now,
		AdminOverride: actor.Admin,
	})
	if err != nil {
		return nil, err
	}
	return subevents, nil
}

func newApplication(userID uuid.UUID, kind model.ApplicationKind, fee int, approved bool, now time.Time, settings config.Settings, actor Actor) *model.Application {
	app := &model.Application{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Fee:       fee,
		State:     model.StateNew,
		Approved:  approved,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if fee > 0 {
		m := maturityDate(now, settings.MaturityGraceDays)
		app.State = model.StateWaitingForPayment
		app.MaturityDate = &m
	}
	return app
}

// revise supersedes prev with a new version. A paid application stays paid
// when the new fee does not exceed what was paid; an application already
// waiting for payment keeps its maturity date.
func revise(ctx context.Context, uow repository.UnitOfWork, prev *model.Application, roles, subevents []uuid.UUID, fee int, now time.Time, settings config.Settings, actor Actor) (*model.Application, error) {
	next := &model.Application{
		ID:        uuid.New(),
		UserID:    prev.UserID,
		Kind:      prev.Kind,
		Roles:     roles,
		Subevents: subevents,
		Fee:       fee,
		Approved:  prev.Approved,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch {
	case prev.State == model.StatePaid && fee <= prev.Fee:
		next.State = model.StatePaid
		next.PaymentDate = prev.PaymentDate
		next.PaidBy = prev.PaidBy
	case fee == 0:
		next.State = model.StateNew
	default:
		next.State = model.StateWaitingForPayment
		if prev.State == model.StateWaitingForPayment && prev.MaturityDate != nil {
			next.MaturityDate = prev.MaturityDate
		} else {
			m := maturityDate(now, settings.MaturityGraceDays)
			next.MaturityDate = &m
		}
	}

	prev.ValidTo = &now
	prev.UpdatedAt = now
	if err := uow.UpdateApplication(ctx, prev); err != nil {
		return nil, err
	}
	if err := uow.InsertApplication(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// supersede closes prev and inserts an otherwise identical version in
// state.
func supersede(ctx context.Context, uow repository.UnitOfWork, prev *model.Application, state model.ApplicationState, now time.Time, actor Actor) (*model.Application, error) {
	next := *prev
	next.ID = uuid.New()
	next.State = state
	next.CreatedBy = actor.ID
	next.CreatedAt = now
	next.UpdatedAt = now
	next.ValidTo = nil

	prev.ValidTo = &now
	prev.UpdatedAt = now
	if err := uow.UpdateApplication(ctx, prev); err != nil {
		return nil, err
	}
	if err := uow.InsertApplication(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// activeApplications returns current, non-canceled applications of kind.
func activeApplications(usr *model.User, kind model.ApplicationKind) []model.Application {
	var out []model.Application
	for _, app := range usr.ActiveApplications() {
		if app.Kind == kind && !app.State.Canceled() {
			out = append(out, app)
		}
	}
	return out
}

func registered(usr *model.User) bool {
	return len(activeApplications(usr, model.KindRoles)) > 0
}

func requiresApproval(roles []model.Role) bool {
	for _, r := range roles {
		if r.ApprovedAfterRegistration {
			return true
		}
	}
	return false
}

// rolesFee sums the fixed role fees.
func rolesFee(roles []model.Role) int {
	fee := 0
	for _, r := range roles {
		if r.Fee != nil {
			fee += *r.Fee
		}
	}
	return fee
}

func feeFromSubevents(roles []model.Role) bool {
	for _, r := range roles {
		if r.FeeFromSubevents() {
			return true
		}
	}
	return false
}

// subeventsFee is the subevent price sum when some role is priced by its
// subevents, zero otherwise.
func subeventsFee(roles []model.Role, subevents []model.Subevent) int {
	if !feeFromSubevents(roles) {
		return 0
	}
	fee := 0
	for _, sub := range subevents {
		fee += sub.Fee
	}
	return fee
}

// knownRoles resolves ids, skipping roles missing from g.
func knownRoles(g *rolegraph.Graph, ids []uuid.UUID) []model.Role {
	var out []model.Role
	for _, id := range ids {
		if r, err := g.Get(id); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func roleIDs(roles []model.Role) []uuid.UUID {
	out := make([]uuid.UUID, len(roles))
	for i, r := range roles {
		out[i] = r.ID
	}
	return out
}

func subeventIDs(subevents []model.Subevent) []uuid.UUID {
	out := make([]uuid.UUID, len(subevents))
	for i, s := range subevents {
		out[i] = s.ID
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
