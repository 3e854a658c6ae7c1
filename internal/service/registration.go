package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/rolegraph"
	"github.com/google/uuid"
)

// RegistrationService runs the registration and cancellation workflow.
// Every operation is one unit of work; notifications go out after commit.
//
// The *InTx variants run inside a caller-provided unit of work and queue
// their notifications on an Outbox, so the maturity sweep can compose
// several steps for one user atomically.
type RegistrationService struct {
	tx     repository.TxRunner
	sender notify.Sender
	clock  clock.Clock
	logger *slog.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(tx repository.TxRunner, sender notify.Sender, clk clock.Clock, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{tx: tx, sender: sender, clock: clk, logger: logger}
}

// RegisterInput is a registration request for one user.
type RegisterInput struct {
	UserID              uuid.UUID
	RoleIDs             []uuid.UUID
	SubeventIDs         []uuid.UUID
	ApprovedImmediately bool
}

// Deliver sends the notifications queued in out.
func (s *RegistrationService) Deliver(ctx context.Context, out *Outbox) {
	deliver(ctx, s.sender, s.logger, out)
}

func (s *RegistrationService) run(ctx context.Context, fn func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error)) (*model.User, error) {
	var (
		usr *model.User
		out Outbox
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		usr, err = fn(ctx, uow, &out)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Deliver(ctx, &out)
	return usr, nil
}

// Register assigns roles and subevents to a user who is not registered yet
// and creates the roles and subevents applications.
func (s *RegistrationService) Register(ctx context.Context, settings config.Settings, in RegisterInput, actor Actor) (*model.User, error) {
	usr, err := s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		return s.register(ctx, uow, settings, in, actor, out)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", usr.ID, "roles", len(usr.Roles), "subevents", len(usr.Subevents))
	return usr, nil
}

func (s *RegistrationService) register(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, in RegisterInput, actor Actor, out *Outbox) (*model.User, error) {
	if len(in.RoleIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", ErrInvalidInput)
	}
	now := s.clock.Now()

	usr, err := uow.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if registered(usr) {
		return nil, ErrAlreadyRegistered
	}

	g, err := loadGraph(ctx, uow)
	if err != nil {
		return nil, err
	}
	v := eligibility.New(g)

	roles, err := admitRoles(ctx, uow, g, v, in.RoleIDs, usr.Roles, now, actor)
	if err != nil {
		return nil, err
	}
	subevents, err := admitSubevents(ctx, uow, v, in.SubeventIDs, usr.Subevents, now, actor)
	if err != nil {
		return nil, err
	}

	if err := uow.SetUserRoles(ctx, usr.ID, roleIDs(roles)); err != nil {
		return nil, err
	}
	if err := uow.SetUserSubevents(ctx, usr.ID, subeventIDs(subevents)); err != nil {
		return nil, err
	}
	approved := in.ApprovedImmediately || !requiresApproval(roles)
	if err := uow.SetUserApproved(ctx, usr.ID, approved); err != nil {
		return nil, err
	}

	rolesApp := newApplication(usr.ID, model.KindRoles, rolesFee(roles), approved, now, settings, actor)
	rolesApp.Roles = roleIDs(roles)
	if err := uow.InsertApplication(ctx, rolesApp); err != nil {
		return nil, err
	}
	subeventsApp := newApplication(usr.ID, model.KindSubevents, subeventsFee(roles, subevents), approved, now, settings, actor)
	subeventsApp.Subevents = subeventIDs(subevents)
	if err := uow.InsertApplication(ctx, subeventsApp); err != nil {
		return nil, err
	}

	return s.finish(ctx, uow, settings, usr.ID, g, notify.TemplateRegistration, out)
}

// UpdateRoles replaces the roles of a registered user and re-versions the
// roles application.
func (s *RegistrationService) UpdateRoles(ctx context.Context, settings config.Settings, userID uuid.UUID, ids []uuid.UUID, actor Actor) (*model.User, error) {
	return s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		return s.UpdateRolesInTx(ctx, uow, settings, userID, ids, actor, out)
	})
}

// UpdateRolesInTx is UpdateRoles inside an existing unit of work.
func (s *RegistrationService) UpdateRolesInTx(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, userID uuid.UUID, ids []uuid.UUID, actor Actor, out *Outbox) (*model.User, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", ErrInvalidInput)
	}
	now := s.clock.Now()

	usr, err := uow.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := activeApplications(usr, model.KindRoles)
	if len(current) == 0 {
		return nil, ErrNotRegistered
	}
	prev := current[0]

	g, err := loadGraph(ctx, uow)
	if err != nil {
		return nil, err
	}
	roles, err := admitRoles(ctx, uow, g, eligibility.New(g), ids, usr.Roles, now, actor)
	if err != nil {
		return nil, err
	}
	if err := uow.SetUserRoles(ctx, usr.ID, roleIDs(roles)); err != nil {
		return nil, err
	}

	if _, err := revise(ctx, uow, &prev, roleIDs(roles), nil, rolesFee(roles), now, settings, actor); err != nil {
		return nil, err
	}

	if feeFromSubevents(knownRoles(g, prev.Roles)) != feeFromSubevents(roles) {
		for _, app := range activeApplications(usr, model.KindSubevents) {
			subevents, err := uow.SubeventsByIDs(ctx, app.Subevents)
			if err != nil {
				return nil, err
			}
			if _, err := revise(ctx, uow, &app, nil, app.Subevents, subeventsFee(roles, subevents), now, settings, actor); err != nil {
				return nil, err
			}
		}
	}

	return s.finish(ctx, uow, settings, usr.ID, g, notify.TemplateRolesChanged, out)
}

// UpdateSubevents replaces the subevents of a registered user. Added
// subevents get a new subevents application; subevents dropped from an
// unpaid application re-version it (or cancel it when nothing is left).
// Dropping a subevent of a paid application fails with ErrApplicationPaid.
func (s *RegistrationService) UpdateSubevents(ctx context.Context, settings config.Settings, userID uuid.UUID, ids []uuid.UUID, actor Actor) (*model.User, error) {
	return s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		return s.updateSubevents(ctx, uow, settings, userID, ids, actor, out)
	})
}

func (s *RegistrationService) updateSubevents(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, userID uuid.UUID, ids []uuid.UUID, actor Actor, out *Outbox) (*model.User, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one subevent is required", ErrInvalidInput)
	}
	now := s.clock.Now()

	usr, err := uow.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !registered(usr) {
		return nil, ErrNotRegistered
	}
	g, err := loadGraph(ctx, uow)
	if err != nil {
		return nil, err
	}
	roles := knownRoles(g, usr.Roles)

	subevents, err := admitSubevents(ctx, uow, eligibility.New(g), ids, usr.Subevents, now, actor)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]model.Subevent, len(subevents))
	for _, sub := range subevents {
		wanted[sub.ID] = sub
	}

	for _, app := range activeApplications(usr, model.KindSubevents) {
		var kept []uuid.UUID
		for _, id := range app.Subevents {
			if _, ok := wanted[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(app.Subevents) {
			continue
		}
		if app.State == model.StatePaid {
			return nil, ErrApplicationPaid
		}
		if len(kept) == 0 {
			app.State = model.StateCanceled
			app.UpdatedAt = now
			if err := uow.UpdateApplication(ctx, &app); err != nil {
				return nil, err
			}
			continue
		}
		keptSubevents, err := uow.SubeventsByIDs(ctx, kept)
		if err != nil {
			return nil, err
		}
		if _, err := revise(ctx, uow, &app, nil, kept, subeventsFee(roles, keptSubevents), now, settings, actor); err != nil {
			return nil, err
		}
	}

	var added []model.Subevent
	for _, sub := range subevents {
		if !usr.HasSubevent(sub.ID) {
			added = append(added, sub)
		}
	}
	if len(added) > 0 {
		app := newApplication(usr.ID, model.KindSubevents, subeventsFee(roles, added), usr.Approved, now, settings, actor)
		app.Subevents = subeventIDs(added)
		if err := uow.InsertApplication(ctx, app); err != nil {
			return nil, err
		}
	}

	if err := uow.SetUserSubevents(ctx, usr.ID, subeventIDs(subevents)); err != nil {
		return nil, err
	}
	return s.finish(ctx, uow, settings, usr.ID, g, notify.TemplateSubeventsChanged, out)
}

// CancelRegistration moves every active application of the user to reason
// and releases the user's roles and subevents. Paid applications are
// superseded by a canceled version instead of being rewritten.
func (s *RegistrationService) CancelRegistration(ctx context.Context, settings config.Settings, userID uuid.UUID, reason model.ApplicationState, actor Actor) (*model.User, error) {
	usr, err := s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		return s.CancelRegistrationInTx(ctx, uow, settings, userID, reason, actor, out)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registration canceled", "user_id", userID, "state", string(reason))
	return usr, nil
}

// CancelRegistrationInTx is CancelRegistration inside an existing unit of work.
func (s *RegistrationService) CancelRegistrationInTx(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, userID uuid.UUID, reason model.ApplicationState, actor Actor, out *Outbox) (*model.User, error) {
	if !reason.Canceled() {
		return nil, fmt.Errorf("%w: %s is not a cancellation state", ErrInvalidState, reason)
	}
	now := s.clock.Now()

	usr, err := uow.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !registered(usr) {
		return nil, ErrNotRegistered
	}

	for _, app := range usr.ActiveApplications() {
		switch {
		case app.State.Canceled():
			continue
		case app.State == model.StatePaid:
			// The paid record is kept as history; the canceled version
			// carries the payment date forward.
			if _, err := supersede(ctx, uow, &app, reason, now, actor); err != nil {
				return nil, err
			}
		default:
			app.State = reason
			app.UpdatedAt = now
			if err := uow.UpdateApplication(ctx, &app); err != nil {
				return nil, err
			}
		}
	}

	g, err := loadGraph(ctx, uow)
	if err != nil {
		return nil, err
	}
	var remaining []uuid.UUID
	if id, ok := nonregisteredRole(g.All()); ok {
		remaining = []uuid.UUID{id}
	}
	if err := uow.SetUserRoles(ctx, usr.ID, remaining); err != nil {
		return nil, err
	}
	if err := uow.SetUserSubevents(ctx, usr.ID, nil); err != nil {
		return nil, err
	}

	return s.finish(ctx, uow, settings, usr.ID, g, notify.TemplateRegistrationCanceled, out)
}

// CancelSubeventsApplication cancels one subevents application and removes
// its subevents from the user.
func (s *RegistrationService) CancelSubeventsApplication(ctx context.Context, settings config.Settings, applicationID uuid.UUID, reason model.ApplicationState, actor Actor) (*model.User, error) {
	return s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		return s.CancelSubeventsApplicationInTx(ctx, uow, settings, applicationID, reason, actor, out)
	})
}

// CancelSubeventsApplicationInTx is CancelSubeventsApplication inside an
// existing unit of work.
func (s *RegistrationService) CancelSubeventsApplicationInTx(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, applicationID uuid.UUID, reason model.ApplicationState, actor Actor, out *Outbox) (*model.User, error) {
	if !reason.Canceled() {
		return nil, fmt.Errorf("%w: %s is not a cancellation state", ErrInvalidState, reason)
	}
	app, err := uow.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Kind != model.KindSubevents || app.ValidTo != nil || app.State.Canceled() {
		return nil, ErrInvalidState
	}
	if app.State == model.StatePaid {
		return nil, ErrApplicationPaid
	}

	app.State = reason
	app.UpdatedAt = s.clock.Now()
	if err := uow.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}

	usr, err := uow.GetUser(ctx, app.UserID)
	if err != nil {
		return nil, err
	}
	var remaining []uuid.UUID
	for _, id := range usr.Subevents {
		if !containsID(app.Subevents, id) {
			remaining = append(remaining, id)
		}
	}
	if err := uow.SetUserSubevents(ctx, usr.ID, remaining); err != nil {
		return nil, err
	}

	g, err := loadGraph(ctx, uow)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, uow, settings, usr.ID, g, notify.TemplateSubeventsChanged, out)
}

// CancelApplication cancels a roles application (the whole registration)
// or a single subevents application.
func (s *RegistrationService) CancelApplication(ctx context.Context, settings config.Settings, applicationID uuid.UUID, reason model.ApplicationState, actor Actor) (*model.User, error) {
	return s.run(ctx, func(ctx context.Context, uow repository.UnitOfWork, out *Outbox) (*model.User, error) {
		app, err := uow.GetApplication(ctx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Kind == model.KindRoles {
			if app.ValidTo != nil || app.State.Canceled() {
				return nil, ErrInvalidState
			}
			return s.CancelRegistrationInTx(ctx, uow, settings, app.UserID, reason, actor, out)
		}
		return s.CancelSubeventsApplicationInTx(ctx, uow, settings, applicationID, reason, actor, out)
	})
}

// MarkPaid records a payment for an active NEW or WAITING_FOR_PAYMENT
// application. A nil paymentDate means today. The actor is recorded as the
// one who confirmed the payment.
func (s *RegistrationService) MarkPaid(ctx context.Context, applicationID uuid.UUID, paymentDate *time.Time, actor Actor) (*model.Application, error) {
	var app *model.Application
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		app, err = uow.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.ValidTo != nil {
			return ErrInvalidState
		}
		switch app.State {
		case model.StatePaid:
			return ErrApplicationPaid
		case model.StateNew, model.StateWaitingForPayment:
		default:
			return ErrInvalidState
		}

		now := s.clock.Now()
		paid := clock.Midnight(now)
		if paymentDate != nil {
			paid = clock.Midnight(*paymentDate)
		}
		app.State = model.StatePaid
		app.PaymentDate = &paid
		app.PaidBy = actor.ID
		app.UpdatedAt = now
		return uow.UpdateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "application paid", "application_id", app.ID, "fee", app.Fee)
	return app, nil
}

// finish reloads the user and queues the notification for tmpl.
func (s *RegistrationService) finish(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, userID uuid.UUID, g *rolegraph.Graph, tmpl notify.Template, out *Outbox) (*model.User, error) {
	usr, err := uow.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	msg, err := compose(ctx, uow, settings, usr, g, tmpl)
	if err != nil {
		return nil, err
	}
	out.Add(msg)
	return usr, nil
}

func compose(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, usr *model.User, g *rolegraph.Graph, tmpl notify.Template) (notify.Message, error) {
	subevents, err := uow.SubeventsByIDs(ctx, usr.Subevents)
	if err != nil {
		return notify.Message{}, err
	}
	roleNames := make([]string, 0, len(usr.Roles))
	for _, r := range knownRoles(g, usr.Roles) {
		roleNames = append(roleNames, r.Name)
	}
	subeventNames := make([]string, 0, len(subevents))
	for _, sub := range subevents {
		subeventNames = append(subeventNames, sub.Name)
	}

	vars := map[string]string{
		"name":         usr.DisplayName(),
		"seminar_name": settings.SeminarName,
		"roles":        strings.Join(roleNames, ", "),
		"subevents":    strings.Join(subeventNames, ", "),
	}
	fee := 0
	var maturity *time.Time
	for _, app := range usr.WaitingForPayment("") {
		fee += app.Fee
		if app.MaturityDate != nil && (maturity == nil || app.MaturityDate.Before(*maturity)) {
			maturity = app.MaturityDate
		}
	}
	if fee > 0 {
		vars["fee"] = strconv.Itoa(fee)
	}
	if maturity != nil {
		vars["maturity_date"] = settings.FormatDate(*maturity)
	}
	return notify.Message{Recipient: usr.Email, Template: tmpl, Variables: vars}, nil
}
